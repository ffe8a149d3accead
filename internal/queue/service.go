package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"escashop/backend/internal/events"
	"escashop/backend/internal/models"
	"escashop/backend/internal/rbac"
	"escashop/backend/internal/store"
)

var (
	// ErrForbidden means the RBAC gate denied the transition for the
	// acting role. Distinguished from ErrInvalidTransition so callers can
	// render "you lack permission" vs "that move is not allowed at all".
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition means the state graph has no such edge.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrInvalidStatus = errors.New("invalid queue status")
)

// Actor identifies who is driving a transition.
type Actor struct {
	UserID string
	Role   rbac.Role
}

// Service owns customer queue_status transitions and counter occupancy.
// Every mutation is one atomic store call; events are emitted after the
// write settles and never affect its outcome.
type Service struct {
	store       store.QueueStore
	broadcaster events.Broadcaster
	now         func() time.Time
}

func NewService(st store.QueueStore, broadcaster events.Broadcaster) *Service {
	return &Service{
		store:       st,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Register(ctx context.Context, input store.RegisterCustomerInput) (models.Customer, error) {
	if input.CreatedAt.IsZero() {
		input.CreatedAt = s.now()
	}
	customer, err := s.store.RegisterCustomer(ctx, input)
	if err != nil {
		return models.Customer{}, err
	}
	s.emitQueueEvents("customer_registered", customer, "", customer.QueueStatus)
	return customer, nil
}

func (s *Service) Customer(ctx context.Context, customerID string) (models.Customer, error) {
	return s.store.GetCustomer(ctx, customerID)
}

func (s *Service) ListQueue(ctx context.Context, statuses []string) ([]models.Customer, error) {
	for _, status := range statuses {
		if !models.ValidStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
	}
	return s.store.ListQueue(ctx, statuses)
}

// CallNext moves the highest-priority waiting customer to serving at the
// given counter. The counter's previous occupant reference is cleared
// before the new assignment, inside the same transaction.
func (s *Service) CallNext(ctx context.Context, counterID string, actor Actor) (models.Customer, error) {
	if !rbac.Allowed(actor.Role, models.StatusWaiting, models.StatusServing) {
		return models.Customer{}, forbiddenErr(actor.Role, models.StatusWaiting, models.StatusServing)
	}
	customer, err := s.store.CallNext(ctx, store.CallNextInput{
		CounterID: counterID,
		ActorID:   actor.UserID,
		CalledAt:  s.now(),
	})
	if err != nil {
		return models.Customer{}, err
	}
	s.emitStatusEvents(store.StatusChange{Customer: customer, PreviousStatus: models.StatusWaiting})
	return customer, nil
}

// CallCustomer is CallNext targeted at one specific waiting customer.
func (s *Service) CallCustomer(ctx context.Context, customerID, counterID string, actor Actor) (models.Customer, error) {
	if !rbac.Allowed(actor.Role, models.StatusWaiting, models.StatusServing) {
		return models.Customer{}, forbiddenErr(actor.Role, models.StatusWaiting, models.StatusServing)
	}
	customer, err := s.store.CallCustomer(ctx, store.CallCustomerInput{
		CustomerID: customerID,
		CounterID:  counterID,
		ActorID:    actor.UserID,
		CalledAt:   s.now(),
	})
	if err != nil {
		return models.Customer{}, err
	}
	s.emitStatusEvents(store.StatusChange{Customer: customer, PreviousStatus: models.StatusWaiting})
	return customer, nil
}

// ChangeStatus is the general transition entry point. The RBAC gate runs
// before the state-graph check; admin-equivalent roles may force
// transitions the graph does not contain.
func (s *Service) ChangeStatus(ctx context.Context, customerID, target string, actor Actor) (models.Customer, error) {
	return s.changeStatus(ctx, customerID, target, "", actor)
}

// CompleteService finishes a customer at a counter, releasing it.
func (s *Service) CompleteService(ctx context.Context, customerID, counterID string, actor Actor) (models.Customer, error) {
	return s.changeStatus(ctx, customerID, models.StatusCompleted, "", actor)
}

// CancelService cancels a customer; reason is recorded for audit only.
func (s *Service) CancelService(ctx context.Context, customerID, reason string, actor Actor) (models.Customer, error) {
	return s.changeStatus(ctx, customerID, models.StatusCancelled, reason, actor)
}

func (s *Service) changeStatus(ctx context.Context, customerID, target, reason string, actor Actor) (models.Customer, error) {
	if !models.ValidStatus(target) {
		return models.Customer{}, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	current, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return models.Customer{}, err
	}

	if !rbac.Allowed(actor.Role, current.QueueStatus, target) {
		return models.Customer{}, forbiddenErr(actor.Role, current.QueueStatus, target)
	}
	forced := actor.Role == rbac.RoleSuperAdmin || actor.Role == rbac.RoleAdmin
	if !forced && !ValidTransition(current.QueueStatus, target) {
		return models.Customer{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.QueueStatus, target)
	}

	change, err := s.store.UpdateQueueStatus(ctx, store.UpdateStatusInput{
		CustomerID:   customerID,
		ExpectedFrom: current.QueueStatus,
		Target:       target,
		ActorID:      actor.UserID,
		Reason:       reason,
		OccurredAt:   s.now(),
	})
	if err != nil {
		return models.Customer{}, err
	}

	s.emitStatusEvents(change)
	return change.Customer, nil
}

// ReorderQueue pins each listed customer's manual position to its index,
// overriding the priority algorithm entirely. Customers no longer waiting
// are skipped; the returned count covers only the rows that moved.
func (s *Service) ReorderQueue(ctx context.Context, customerIDs []string, actor Actor) (int, error) {
	if len(customerIDs) == 0 {
		return 0, nil
	}
	reordered, err := s.store.ReorderQueue(ctx, customerIDs)
	if err != nil {
		return 0, err
	}
	s.broadcaster.QueueUpdate(events.QueueUpdatePayload{
		Type:            "queue_reordered",
		Timestamp:       s.now(),
		ProcessingCount: s.processingCount(ctx),
	})
	return reordered, nil
}

// Position returns the 1-based rank of a waiting customer under the same
// ordering CallNext uses.
func (s *Service) Position(ctx context.Context, customerID string) (int, error) {
	return s.store.QueuePosition(ctx, customerID)
}

// ResetQueue archives every active customer, clears all counters and
// rewinds the daily token counter. Callers restrict this to
// admin-equivalent roles.
func (s *Service) ResetQueue(ctx context.Context, actor Actor, reason string) (store.ResetQueueResult, error) {
	result, err := s.store.ResetQueue(ctx, store.ResetQueueInput{ActorID: actor.UserID, Reason: reason})
	if err != nil {
		return store.ResetQueueResult{}, err
	}
	s.broadcaster.QueueUpdate(events.QueueUpdatePayload{
		Type:            "queue_reset",
		Timestamp:       s.now(),
		ProcessingCount: 0,
	})
	return result, nil
}

func (s *Service) Counters(ctx context.Context) ([]models.Counter, error) {
	return s.store.ListCounters(ctx)
}

func (s *Service) SetCounterActive(ctx context.Context, counterID string, active bool) error {
	return s.store.SetCounterActive(ctx, counterID, active)
}

func (s *Service) emitStatusEvents(change store.StatusChange) {
	customer := change.Customer
	s.broadcaster.QueueStatusChanged(events.StatusChangedPayload{
		ID:             customer.CustomerID,
		NewStatus:      customer.QueueStatus,
		Timestamp:      s.now(),
		PreviousStatus: change.PreviousStatus,
		SuppressSound:  events.SuppressSound(customer.QueueStatus),
	})
	s.emitQueueEvents("status_changed", customer, change.PreviousStatus, customer.QueueStatus)
}

func (s *Service) emitQueueEvents(kind string, customer models.Customer, previous, next string) {
	s.broadcaster.QueueUpdate(events.QueueUpdatePayload{
		Type:            kind,
		Customer:        &customer,
		PreviousStatus:  previous,
		NewStatus:       next,
		Timestamp:       s.now(),
		ProcessingCount: s.processingCountBackground(),
		SuppressSound:   events.SuppressSound(next),
	})
}

// processingCountBackground recomputes the live processing count for the
// broad queue:update event. Counting is best-effort: on failure the event
// still goes out with 0 rather than failing the settled mutation.
func (s *Service) processingCountBackground() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.processingCount(ctx)
}

func (s *Service) processingCount(ctx context.Context) int {
	count, err := s.store.CountByStatus(ctx, models.StatusProcessing)
	if err != nil {
		log.Printf("processing count error: %v", err)
		return 0
	}
	return count
}

func forbiddenErr(role rbac.Role, current, target string) error {
	return fmt.Errorf("%w: role %s may not move %s to %s (allowed roles: %v)",
		ErrForbidden, role, current, target, rbac.AllowedRoles(current, target))
}
