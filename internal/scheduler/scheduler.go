// Package scheduler runs the two process-wide background jobs: the daily
// queue reset at a fixed local wall-clock time, and a weekly cleanup that
// prunes archives beyond the retention window. Each run is a single
// logical transaction executed through the queue service.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"escashop/backend/internal/queue"
	"escashop/backend/internal/rbac"
	"escashop/backend/internal/store"
)

// Pruner is the slice of the store the weekly cleanup needs.
type Pruner interface {
	PruneArchives(ctx context.Context, olderThan time.Time) (int, error)
}

type Scheduler struct {
	queue    *queue.Service
	pruner   Pruner
	location *time.Location

	resetHour     int
	resetMinute   int
	cleanupDay    time.Weekday
	retentionDays int

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type Options struct {
	// ResetTime is "HH:MM" local wall-clock time.
	ResetTime     string
	Timezone      string
	CleanupDay    time.Weekday
	RetentionDays int
}

func New(queueSvc *queue.Service, pruner Pruner, options Options) (*Scheduler, error) {
	location, err := time.LoadLocation(options.Timezone)
	if err != nil {
		return nil, err
	}
	resetAt, err := time.Parse("15:04", options.ResetTime)
	if err != nil {
		return nil, err
	}
	retention := options.RetentionDays
	if retention <= 0 {
		retention = 30
	}
	return &Scheduler{
		queue:         queueSvc,
		pruner:        pruner,
		location:      location,
		resetHour:     resetAt.Hour(),
		resetMinute:   resetAt.Minute(),
		cleanupDay:    options.CleanupDay,
		retentionDays: retention,
		stop:          make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("scheduler started reset=%02d:%02d tz=%s cleanup_day=%s",
		s.resetHour, s.resetMinute, s.location, s.cleanupDay)
}

func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		next := s.nextReset(time.Now().In(s.location))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.runDailyReset()
			if next.Weekday() == s.cleanupDay {
				s.runWeeklyCleanup()
			}
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// nextReset returns the next wall-clock occurrence of the reset time
// strictly after now.
func (s *Scheduler) nextReset(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.resetHour, s.resetMinute, 0, 0, s.location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) runDailyReset() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	result, err := s.queue.ResetQueue(ctx, queue.Actor{UserID: "scheduler", Role: rbac.RoleSuperAdmin}, "daily reset")
	if err != nil {
		log.Printf("daily reset error: %v", err)
		return
	}
	logReset(result)
}

func (s *Scheduler) runWeeklyCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	cutoff := time.Now().In(s.location).AddDate(0, 0, -s.retentionDays)
	pruned, err := s.pruner.PruneArchives(ctx, cutoff)
	if err != nil {
		log.Printf("weekly cleanup error: %v", err)
		return
	}
	log.Printf("weekly cleanup pruned %d archived customers", pruned)
}

func logReset(result store.ResetQueueResult) {
	log.Printf("daily reset archived=%d counters_cleared=%d", result.Archived, result.CountersCleared)
}
