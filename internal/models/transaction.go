package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentUnpaid  = "unpaid"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

// Transaction is a monetary record tied to one customer. BaseAmount is nil
// when never set; a zero BaseAmount is a legitimately free transaction.
type Transaction struct {
	TransactionID string           `json:"transaction_id"`
	CustomerID    string           `json:"customer_id"`
	ORNumber      string           `json:"or_number"`
	BaseAmount    *decimal.Decimal `json:"base_amount,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	BalanceAmount decimal.Decimal  `json:"balance_amount"`
	PaymentStatus string           `json:"payment_status"`
	PaymentMode   string           `json:"payment_mode,omitempty"`
	SalesAgentID  *string          `json:"sales_agent_id,omitempty"`
	CashierID     *string          `json:"cashier_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type TransactionItem struct {
	ItemID        string          `json:"item_id"`
	TransactionID string          `json:"transaction_id"`
	ItemName      string          `json:"item_name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

type PaymentSettlement struct {
	SettlementID  string          `json:"settlement_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMode   string          `json:"payment_mode"`
	CashierID     string          `json:"cashier_id"`
	PaidAt        time.Time       `json:"paid_at"`
}
