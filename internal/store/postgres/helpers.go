package postgres

import (
	"context"
	"database/sql"
	"time"

	"escashop/backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (models.Customer, error) {
	var customer models.Customer
	var contactNull, emailNull, notesNull sql.NullString
	var manualNull sql.NullInt32
	var servedNull sql.NullTime
	err := row.Scan(
		&customer.CustomerID, &customer.Name, &contactNull, &emailNull, &notesNull,
		&customer.PriorityFlags.SeniorCitizen, &customer.PriorityFlags.PWD, &customer.PriorityFlags.Pregnant,
		&customer.QueueStatus, &customer.TokenNumber,
		&manualNull, &customer.CreatedAt, &servedNull,
	)
	if err != nil {
		return models.Customer{}, err
	}
	customer.ContactNumber = contactNull.String
	customer.Email = emailNull.String
	customer.OrderNotes = notesNull.String
	if manualNull.Valid {
		position := int(manualNull.Int32)
		customer.ManualPosition = &position
	}
	if servedNull.Valid {
		served := servedNull.Time
		customer.ServedAt = &served
	}
	return customer, nil
}

func scanCustomerWithCounter(row rowScanner) (models.Customer, error) {
	var customer models.Customer
	var contactNull, emailNull, notesNull, counterNull sql.NullString
	var manualNull sql.NullInt32
	var servedNull sql.NullTime
	err := row.Scan(
		&customer.CustomerID, &customer.Name, &contactNull, &emailNull, &notesNull,
		&customer.PriorityFlags.SeniorCitizen, &customer.PriorityFlags.PWD, &customer.PriorityFlags.Pregnant,
		&customer.QueueStatus, &customer.TokenNumber,
		&manualNull, &customer.CreatedAt, &servedNull,
		&counterNull,
	)
	if err != nil {
		return models.Customer{}, err
	}
	customer.ContactNumber = contactNull.String
	customer.Email = emailNull.String
	customer.OrderNotes = notesNull.String
	if manualNull.Valid {
		position := int(manualNull.Int32)
		customer.ManualPosition = &position
	}
	if servedNull.Valid {
		served := servedNull.Time
		customer.ServedAt = &served
	}
	customer.CounterID = nullStringPtr(counterNull)
	return customer, nil
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	result := value.String
	return &result
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// queueEvent is one row of the append-only transition audit trail.
// CustomerID is empty for queue-wide events such as a reset.
type queueEvent struct {
	CustomerID string
	Kind       string
	FromStatus string
	ToStatus   string
	CounterID  string
	ActorID    string
	Reason     string
	OccurredAt time.Time
}

func insertQueueEvent(ctx context.Context, tx pgx.Tx, event queueEvent) error {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_events (
			event_id, customer_id, kind, from_status, to_status,
			counter_id, actor_id, reason, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, uuid.NewString(), nullIfEmpty(event.CustomerID), event.Kind,
		nullIfEmpty(event.FromStatus), nullIfEmpty(event.ToStatus),
		nullIfEmpty(event.CounterID), nullIfEmpty(event.ActorID),
		nullIfEmpty(event.Reason), occurredAt)
	return err
}
