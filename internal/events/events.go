// Package events defines the realtime contract between the core services
// and subscribed clients. Event names and payload field names are frozen;
// clients update their views from these payloads without a follow-up
// fetch.
package events

import (
	"time"

	"escashop/backend/internal/models"

	"github.com/shopspring/decimal"
)

const (
	TypeQueueStatusChanged   = "queue:status_changed"
	TypeQueueUpdate          = "queue:update"
	TypeTransactionUpdated   = "transactionUpdated"
	TypePaymentStatusUpdated = "payment_status_updated"
	TypeSettlementCreated    = "settlementCreated"
)

// SuppressSound is set for transitions into processing: clients must not
// sound-alert for this internal back-office move.
func SuppressSound(newStatus string) bool {
	return newStatus == models.StatusProcessing
}

type StatusChangedPayload struct {
	ID             string    `json:"id"`
	NewStatus      string    `json:"newStatus"`
	Timestamp      time.Time `json:"timestamp"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	SuppressSound  bool      `json:"suppressSound"`
}

type QueueUpdatePayload struct {
	Type            string           `json:"type"`
	Customer        *models.Customer `json:"customer,omitempty"`
	PreviousStatus  string           `json:"previousStatus,omitempty"`
	NewStatus       string           `json:"newStatus,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	ProcessingCount int              `json:"processingCount"`
	SuppressSound   bool             `json:"suppressSound"`
}

type TransactionUpdatedPayload struct {
	Type          string                    `json:"type"`
	Transaction   *models.Transaction       `json:"transaction,omitempty"`
	TransactionID string                    `json:"transactionId,omitempty"`
	Settlement    *models.PaymentSettlement `json:"settlement,omitempty"`
	Timestamp     time.Time                 `json:"timestamp"`
}

type PaymentStatusPayload struct {
	TransactionID string          `json:"transactionId"`
	PaymentStatus string          `json:"payment_status"`
	BalanceAmount decimal.Decimal `json:"balance_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	CustomerID    string          `json:"customer_id,omitempty"`
	ORNumber      string          `json:"or_number,omitempty"`
	UpdatedBy     string          `json:"updatedBy,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

type SettlementCreatedPayload struct {
	TransactionID string                   `json:"transaction_id"`
	Settlement    models.PaymentSettlement `json:"settlement"`
	Transaction   models.Transaction       `json:"transaction"`
}

// Broadcaster fans events out to realtime subscribers. Delivery is
// fire-and-forget: implementations log failures and never surface them,
// so a broadcast can never roll back or block the write it follows.
type Broadcaster interface {
	QueueStatusChanged(payload StatusChangedPayload)
	QueueUpdate(payload QueueUpdatePayload)
	TransactionUpdated(payload TransactionUpdatedPayload)
	PaymentStatusUpdated(payload PaymentStatusPayload)
	SettlementCreated(payload SettlementCreatedPayload)
}

// Nop discards every event.
type Nop struct{}

func (Nop) QueueStatusChanged(StatusChangedPayload)      {}
func (Nop) QueueUpdate(QueueUpdatePayload)               {}
func (Nop) TransactionUpdated(TransactionUpdatedPayload) {}
func (Nop) PaymentStatusUpdated(PaymentStatusPayload)    {}
func (Nop) SettlementCreated(SettlementCreatedPayload)   {}
