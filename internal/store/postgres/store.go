package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"escashop/backend/internal/models"
	"escashop/backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// waitingOrder is the single ordering rule shared by CallNext,
// QueuePosition and queue listing. A manual position always dominates the
// priority weights; within each group earlier registration wins. The CASE
// weights mirror models.PriorityFlags.Weight.
const waitingOrder = `
	(c.manual_position IS NULL) ASC,
	c.manual_position ASC,
	CASE
		WHEN c.senior_citizen THEN 1000
		WHEN c.pwd THEN 900
		WHEN c.pregnant THEN 800
		ELSE 0
	END DESC,
	c.created_at ASC
`

const customerColumns = `
	c.customer_id, c.name, c.contact_number, c.email, c.order_notes,
	c.senior_citizen, c.pwd, c.pregnant, c.queue_status, c.token_number,
	c.manual_position, c.created_at, c.served_at
`

func (s *Store) RegisterCustomer(ctx context.Context, input store.RegisterCustomerInput) (models.Customer, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Customer{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	token, err := nextTokenNumber(ctx, tx, createdAt)
	if err != nil {
		return models.Customer{}, err
	}

	customerID := uuid.NewString()
	var paymentAmount interface{}
	if input.PaymentAmount != nil {
		paymentAmount = input.PaymentAmount.String()
	}

	var customer models.Customer
	row := tx.QueryRow(ctx, `
		INSERT INTO customers (
			customer_id, name, contact_number, email, order_notes,
			senior_citizen, pwd, pregnant, queue_status, token_number,
			service_date, payment_amount, payment_mode, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING customer_id, name, queue_status, token_number, created_at
	`, customerID, input.Name, input.ContactNumber, input.Email, input.OrderNotes,
		input.PriorityFlags.SeniorCitizen, input.PriorityFlags.PWD, input.PriorityFlags.Pregnant,
		models.StatusWaiting, token, createdAt.Format("2006-01-02"), paymentAmount,
		nullIfEmpty(input.PaymentMode), createdAt)
	if err = row.Scan(&customer.CustomerID, &customer.Name, &customer.QueueStatus, &customer.TokenNumber, &customer.CreatedAt); err != nil {
		return models.Customer{}, err
	}
	customer.ContactNumber = input.ContactNumber
	customer.Email = input.Email
	customer.OrderNotes = input.OrderNotes
	customer.PriorityFlags = input.PriorityFlags

	if input.ORNumber != "" {
		if err = insertInitialTransaction(ctx, tx, customerID, input, createdAt); err != nil {
			return models.Customer{}, err
		}
	}

	if err = insertQueueEvent(ctx, tx, queueEvent{
		CustomerID: customerID,
		Kind:       "registered",
		ToStatus:   models.StatusWaiting,
		ActorID:    input.SalesAgentID,
		OccurredAt: createdAt,
	}); err != nil {
		return models.Customer{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (models.Customer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+customerColumns+`, ct.counter_id
		FROM customers c
		LEFT JOIN counters ct ON ct.current_customer_id = c.customer_id
		WHERE c.customer_id = $1
	`, customerID)
	customer, err := scanCustomerWithCounter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Customer{}, store.ErrCustomerNotFound
		}
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *Store) ListQueue(ctx context.Context, statuses []string) ([]models.Customer, error) {
	if len(statuses) == 0 {
		statuses = []string{models.StatusServing, models.StatusProcessing, models.StatusWaiting}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`, ct.counter_id
		FROM customers c
		LEFT JOIN counters ct ON ct.current_customer_id = c.customer_id
		WHERE c.queue_status = ANY($1)
		ORDER BY
			CASE c.queue_status
				WHEN 'serving' THEN 0
				WHEN 'processing' THEN 1
				WHEN 'waiting' THEN 2
				WHEN 'completed' THEN 3
				ELSE 4
			END ASC,
			`+waitingOrder+`
	`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		customer, err := scanCustomerWithCounter(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Customer, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Customer{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = lockAvailableCounter(ctx, tx, input.CounterID); err != nil {
		return models.Customer{}, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	// Clear the counter's previous occupant strictly before assigning the
	// next one, so no two counters ever reference the same customer.
	if _, err = tx.Exec(ctx, `
		UPDATE counters SET current_customer_id = NULL WHERE counter_id = $1
	`, input.CounterID); err != nil {
		return models.Customer{}, err
	}

	var customer models.Customer
	row := tx.QueryRow(ctx, `
		WITH next_customer AS (
			SELECT c.customer_id
			FROM customers c
			WHERE c.queue_status = 'waiting'
			ORDER BY `+waitingOrder+`
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE customers c
		SET queue_status = 'serving',
			served_at = $1
		FROM next_customer
		WHERE c.customer_id = next_customer.customer_id
		RETURNING `+customerColumns+`
	`, calledAt)
	customer, err = scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrQueueEmpty
		}
		return models.Customer{}, err
	}

	if err = assignCounter(ctx, tx, input.CounterID, customer.CustomerID); err != nil {
		return models.Customer{}, err
	}
	customer.CounterID = &input.CounterID

	if err = insertQueueEvent(ctx, tx, queueEvent{
		CustomerID: customer.CustomerID,
		Kind:       "called",
		FromStatus: models.StatusWaiting,
		ToStatus:   models.StatusServing,
		CounterID:  input.CounterID,
		ActorID:    input.ActorID,
		OccurredAt: calledAt,
	}); err != nil {
		return models.Customer{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *Store) CallCustomer(ctx context.Context, input store.CallCustomerInput) (models.Customer, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Customer{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = lockAvailableCounter(ctx, tx, input.CounterID); err != nil {
		return models.Customer{}, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	if _, err = tx.Exec(ctx, `
		UPDATE counters SET current_customer_id = NULL WHERE counter_id = $1
	`, input.CounterID); err != nil {
		return models.Customer{}, err
	}

	var customer models.Customer
	row := tx.QueryRow(ctx, `
		UPDATE customers c
		SET queue_status = 'serving',
			served_at = $2
		WHERE c.customer_id = $1 AND c.queue_status = 'waiting'
		RETURNING `+customerColumns+`
	`, input.CustomerID, calledAt)
	customer, err = scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissingWaiting(ctx, tx, input.CustomerID)
		}
		return models.Customer{}, err
	}

	if err = assignCounter(ctx, tx, input.CounterID, customer.CustomerID); err != nil {
		return models.Customer{}, err
	}
	customer.CounterID = &input.CounterID

	if err = insertQueueEvent(ctx, tx, queueEvent{
		CustomerID: customer.CustomerID,
		Kind:       "called",
		FromStatus: models.StatusWaiting,
		ToStatus:   models.StatusServing,
		CounterID:  input.CounterID,
		ActorID:    input.ActorID,
		OccurredAt: calledAt,
	}); err != nil {
		return models.Customer{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *Store) UpdateQueueStatus(ctx context.Context, input store.UpdateStatusInput) (store.StatusChange, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.StatusChange{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	var customer models.Customer
	row := tx.QueryRow(ctx, `
		UPDATE customers c
		SET queue_status = $3,
			served_at = CASE WHEN $3 = 'serving' AND c.served_at IS NULL THEN $4 ELSE c.served_at END,
			cancellation_reason = CASE WHEN $3 = 'cancelled' AND $5 <> '' THEN $5 ELSE c.cancellation_reason END
		WHERE c.customer_id = $1 AND c.queue_status = $2
		RETURNING `+customerColumns+`
	`, input.CustomerID, input.ExpectedFrom, input.Target, occurredAt, input.Reason)
	customer, err = scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyStatusConflict(ctx, tx, input.CustomerID)
		}
		return store.StatusChange{}, err
	}

	// Entering a terminal state releases any counter still pointing at
	// this customer.
	if models.TerminalStatus(input.Target) {
		if _, err = tx.Exec(ctx, `
			UPDATE counters SET current_customer_id = NULL WHERE current_customer_id = $1
		`, input.CustomerID); err != nil {
			return store.StatusChange{}, err
		}
	}

	if err = insertQueueEvent(ctx, tx, queueEvent{
		CustomerID: input.CustomerID,
		Kind:       "status_changed",
		FromStatus: input.ExpectedFrom,
		ToStatus:   input.Target,
		ActorID:    input.ActorID,
		Reason:     input.Reason,
		OccurredAt: occurredAt,
	}); err != nil {
		return store.StatusChange{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.StatusChange{}, err
	}
	return store.StatusChange{Customer: customer, PreviousStatus: input.ExpectedFrom}, nil
}

func (s *Store) ReorderQueue(ctx context.Context, customerIDs []string) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Non-waiting ids are skipped rather than rejected; the count tells
	// the caller how many rows actually moved.
	reordered := 0
	for index, customerID := range customerIDs {
		var tag pgconn.CommandTag
		if tag, err = tx.Exec(ctx, `
			UPDATE customers
			SET manual_position = $2
			WHERE customer_id = $1 AND queue_status = 'waiting'
		`, customerID, index+1); err != nil {
			return 0, err
		}
		reordered += int(tag.RowsAffected())
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return reordered, nil
}

func (s *Store) QueuePosition(ctx context.Context, customerID string) (int, error) {
	var position int
	row := s.pool.QueryRow(ctx, `
		WITH ordered AS (
			SELECT c.customer_id,
				ROW_NUMBER() OVER (ORDER BY `+waitingOrder+`) AS position
			FROM customers c
			WHERE c.queue_status = 'waiting'
		)
		SELECT position FROM ordered WHERE customer_id = $1
	`, customerID)
	if err := row.Scan(&position); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var status string
			inner := s.pool.QueryRow(ctx, `
				SELECT queue_status FROM customers WHERE customer_id = $1
			`, customerID)
			if innerErr := inner.Scan(&status); innerErr != nil {
				if errors.Is(innerErr, pgx.ErrNoRows) {
					return 0, store.ErrCustomerNotFound
				}
				return 0, innerErr
			}
			return 0, store.ErrCustomerNotWaiting
		}
		return 0, err
	}
	return position, nil
}

func (s *Store) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM customers WHERE queue_status = $1
	`, status)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ResetQueue(ctx context.Context, input store.ResetQueueInput) (store.ResetQueueResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.ResetQueueResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()

	tag, err := tx.Exec(ctx, `
		INSERT INTO customers_archive (
			customer_id, name, contact_number, email, order_notes,
			senior_citizen, pwd, pregnant, queue_status, token_number,
			service_date, created_at, served_at, archived_at, archive_reason
		)
		SELECT customer_id, name, contact_number, email, order_notes,
			senior_citizen, pwd, pregnant, queue_status, token_number,
			service_date, created_at, served_at, $1, $2
		FROM customers
	`, now, input.Reason)
	if err != nil {
		return store.ResetQueueResult{}, err
	}
	archived := int(tag.RowsAffected())

	clearedTag, err := tx.Exec(ctx, `
		UPDATE counters
		SET current_customer_id = NULL
		WHERE current_customer_id IS NOT NULL
	`)
	if err != nil {
		return store.ResetQueueResult{}, err
	}

	if _, err = tx.Exec(ctx, `DELETE FROM customers`); err != nil {
		return store.ResetQueueResult{}, err
	}

	// Dropping the day rows rewinds the token sequence: the next
	// registration's upsert starts again at 1.
	if _, err = tx.Exec(ctx, `DELETE FROM daily_token_counter`); err != nil {
		return store.ResetQueueResult{}, err
	}

	if err = insertQueueEvent(ctx, tx, queueEvent{
		Kind:       "queue_reset",
		ActorID:    input.ActorID,
		Reason:     input.Reason,
		OccurredAt: now,
	}); err != nil {
		return store.ResetQueueResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.ResetQueueResult{}, err
	}
	return store.ResetQueueResult{
		Archived:        archived,
		CountersCleared: int(clearedTag.RowsAffected()),
	}, nil
}

func (s *Store) ListCounters(ctx context.Context) ([]models.Counter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT counter_id, name, is_active, display_order, current_customer_id
		FROM counters
		ORDER BY display_order ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []models.Counter
	for rows.Next() {
		var counter models.Counter
		var occupantNull sql.NullString
		if err := rows.Scan(&counter.CounterID, &counter.Name, &counter.IsActive, &counter.DisplayOrder, &occupantNull); err != nil {
			return nil, err
		}
		counter.CurrentCustomerID = nullStringPtr(occupantNull)
		counters = append(counters, counter)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counters, nil
}

func (s *Store) SetCounterActive(ctx context.Context, counterID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE counters SET is_active = $2 WHERE counter_id = $1
	`, counterID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrCounterNotFound
	}
	return nil
}

// lockAvailableCounter locks the counter row for the rest of the
// transaction and verifies it can take a customer.
func lockAvailableCounter(ctx context.Context, tx pgx.Tx, counterID string) error {
	var active bool
	row := tx.QueryRow(ctx, `
		SELECT is_active FROM counters WHERE counter_id = $1 FOR UPDATE
	`, counterID)
	if err := row.Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrCounterNotFound
		}
		return err
	}
	if !active {
		return store.ErrCounterUnavailable
	}
	return nil
}

func assignCounter(ctx context.Context, tx pgx.Tx, counterID, customerID string) error {
	// Exclusive occupancy: no other counter may keep a stale reference to
	// the customer being assigned.
	if _, err := tx.Exec(ctx, `
		UPDATE counters SET current_customer_id = NULL
		WHERE current_customer_id = $1 AND counter_id <> $2
	`, customerID, counterID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE counters SET current_customer_id = $1 WHERE counter_id = $2
	`, customerID, counterID)
	return err
}

func classifyMissingWaiting(ctx context.Context, tx pgx.Tx, customerID string) error {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT queue_status FROM customers WHERE customer_id = $1
	`, customerID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrCustomerNotFound
		}
		return err
	}
	return store.ErrCustomerNotWaiting
}

func classifyStatusConflict(ctx context.Context, tx pgx.Tx, customerID string) error {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT queue_status FROM customers WHERE customer_id = $1
	`, customerID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrCustomerNotFound
		}
		return err
	}
	return store.ErrStatusConflict
}

// nextTokenNumber increments the per-day token sequence atomically; the
// upsert serializes concurrent registrations on the day row.
func nextTokenNumber(ctx context.Context, tx pgx.Tx, at time.Time) (int, error) {
	var next int
	row := tx.QueryRow(ctx, `
		INSERT INTO daily_token_counter (service_date, next_number)
		VALUES ($1, 1)
		ON CONFLICT (service_date)
		DO UPDATE SET next_number = daily_token_counter.next_number + 1
		RETURNING next_number
	`, at.Format("2006-01-02"))
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}
