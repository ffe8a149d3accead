package queue

import (
	"testing"

	"escashop/backend/internal/models"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		want bool
	}{
		{models.StatusWaiting, models.StatusServing, true},
		{models.StatusWaiting, models.StatusCancelled, true},
		{models.StatusWaiting, models.StatusProcessing, false},
		{models.StatusWaiting, models.StatusCompleted, false},
		{models.StatusServing, models.StatusProcessing, true},
		{models.StatusServing, models.StatusCompleted, true},
		{models.StatusServing, models.StatusCancelled, true},
		{models.StatusServing, models.StatusWaiting, false},
		{models.StatusProcessing, models.StatusCompleted, true},
		{models.StatusProcessing, models.StatusCancelled, true},
		{models.StatusProcessing, models.StatusServing, false},
		{models.StatusCompleted, models.StatusWaiting, false},
		{models.StatusCompleted, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusWaiting, false},
	}
	for _, tc := range cases {
		if got := ValidTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesHaveNoEdges(t *testing.T) {
	for _, terminal := range []string{models.StatusCompleted, models.StatusCancelled} {
		for _, target := range []string{
			models.StatusWaiting, models.StatusServing, models.StatusProcessing,
			models.StatusCompleted, models.StatusCancelled,
		} {
			if ValidTransition(terminal, target) {
				t.Errorf("terminal status %s must not transition to %s", terminal, target)
			}
		}
	}
}
