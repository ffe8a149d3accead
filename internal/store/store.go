package store

import (
	"context"
	"time"

	"escashop/backend/internal/models"

	"github.com/shopspring/decimal"
)

type RegisterCustomerInput struct {
	Name          string
	ContactNumber string
	Email         string
	OrderNotes    string
	PriorityFlags models.PriorityFlags
	// PaymentAmount, when set, seeds an initial transaction for the
	// customer using ORNumber and PaymentMode.
	PaymentAmount *decimal.Decimal
	ORNumber      string
	PaymentMode   string
	SalesAgentID  string
	CreatedAt     time.Time
}

type CallNextInput struct {
	CounterID string
	ActorID   string
	CalledAt  time.Time
}

type CallCustomerInput struct {
	CustomerID string
	CounterID  string
	ActorID    string
	CalledAt   time.Time
}

type UpdateStatusInput struct {
	CustomerID string
	// ExpectedFrom guards against concurrent writers: the update applies
	// only while the row still holds this status.
	ExpectedFrom string
	Target       string
	ActorID      string
	Reason       string
	OccurredAt   time.Time
}

type ResetQueueInput struct {
	ActorID string
	Reason  string
}

type ResetQueueResult struct {
	Archived        int
	CountersCleared int
}

// StatusChange is the settled outcome of a transition, carrying the
// pre-mutation status for event payloads.
type StatusChange struct {
	Customer       models.Customer
	PreviousStatus string
}

type QueueStore interface {
	RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (models.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (models.Customer, error)
	ListQueue(ctx context.Context, statuses []string) ([]models.Customer, error)
	CallNext(ctx context.Context, input CallNextInput) (models.Customer, error)
	CallCustomer(ctx context.Context, input CallCustomerInput) (models.Customer, error)
	UpdateQueueStatus(ctx context.Context, input UpdateStatusInput) (StatusChange, error)
	ReorderQueue(ctx context.Context, customerIDs []string) (int, error)
	QueuePosition(ctx context.Context, customerID string) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	ResetQueue(ctx context.Context, input ResetQueueInput) (ResetQueueResult, error)
	ListCounters(ctx context.Context) ([]models.Counter, error)
	SetCounterActive(ctx context.Context, counterID string, active bool) error
}

type CreateTransactionInput struct {
	CustomerID   string
	ORNumber     string
	BaseAmount   *decimal.Decimal
	PaymentMode  string
	SalesAgentID string
	CashierID    string
	CreatedAt    time.Time
}

type UpdateTransactionInput struct {
	TransactionID string
	BaseAmount    *decimal.Decimal
	PaymentMode   string
}

type ItemInput struct {
	TransactionID string
	ItemID        string
	ItemName      string
	Quantity      int
	UnitPrice     decimal.Decimal
}

type RecordSettlementInput struct {
	TransactionID string
	Amount        decimal.Decimal
	PaymentMode   string
	CashierID     string
	PaidAt        time.Time
}

// FinancialSnapshot captures the derived fields that matter for event
// de-duplication.
type FinancialSnapshot struct {
	PaidAmount    decimal.Decimal
	PaymentStatus string
}

// TransactionChange pairs the post-write transaction with its pre-write
// snapshot so callers can decide whether anything observable changed.
type TransactionChange struct {
	Transaction models.Transaction
	Before      FinancialSnapshot
}

type SettlementResult struct {
	Settlement models.PaymentSettlement
	Change     TransactionChange
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, input CreateTransactionInput) (models.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error)
	ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, input UpdateTransactionInput) (TransactionChange, error)
	DeleteTransaction(ctx context.Context, transactionID string) error
	AddItem(ctx context.Context, input ItemInput) (TransactionChange, error)
	UpdateItem(ctx context.Context, input ItemInput) (TransactionChange, error)
	DeleteItem(ctx context.Context, transactionID, itemID string) (TransactionChange, error)
	ListItems(ctx context.Context, transactionID string) ([]models.TransactionItem, error)
	RecordSettlement(ctx context.Context, input RecordSettlementInput) (SettlementResult, error)
	ListSettlements(ctx context.Context, transactionID string) ([]models.PaymentSettlement, error)
}
