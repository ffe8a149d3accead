package models

import "time"

type PriorityFlags struct {
	SeniorCitizen bool `json:"senior_citizen"`
	PWD           bool `json:"pwd"`
	Pregnant      bool `json:"pregnant"`
}

// Weight converts priority flags to a numeric offset for queue ordering.
// A customer with multiple flags ranks by the strongest one.
func (f PriorityFlags) Weight() int {
	switch {
	case f.SeniorCitizen:
		return 1000
	case f.PWD:
		return 900
	case f.Pregnant:
		return 800
	default:
		return 0
	}
}

type Customer struct {
	CustomerID     string        `json:"customer_id"`
	Name           string        `json:"name"`
	ContactNumber  string        `json:"contact_number,omitempty"`
	Email          string        `json:"email,omitempty"`
	OrderNotes     string        `json:"order_notes,omitempty"`
	PriorityFlags  PriorityFlags `json:"priority_flags"`
	QueueStatus    string        `json:"queue_status"`
	TokenNumber    int           `json:"token_number"`
	ManualPosition *int          `json:"manual_position,omitempty"`
	CounterID      *string       `json:"counter_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ServedAt       *time.Time    `json:"served_at,omitempty"`
}

const (
	StatusWaiting    = "waiting"
	StatusServing    = "serving"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ValidStatus reports whether value is a recognized queue status.
// Callers canonicalize to lowercase before the core sees the value.
func ValidStatus(value string) bool {
	switch value {
	case StatusWaiting, StatusServing, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// TerminalStatus reports whether a status ends the customer's active
// participation in the queue.
func TerminalStatus(value string) bool {
	return value == StatusCompleted || value == StatusCancelled
}
