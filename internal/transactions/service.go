// Package transactions exposes the financial side of the ledger:
// transaction and line-item maintenance plus settlement recording. Derived
// fields are recomputed by the store inside the triggering write's
// transaction; this layer decides whether the outcome is worth
// broadcasting.
package transactions

import (
	"context"
	"time"

	"escashop/backend/internal/events"
	"escashop/backend/internal/finance"
	"escashop/backend/internal/models"
	"escashop/backend/internal/store"
)

type Service struct {
	store       store.TransactionStore
	broadcaster events.Broadcaster
	now         func() time.Time
}

func NewService(st store.TransactionStore, broadcaster events.Broadcaster) *Service {
	return &Service{
		store:       st,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, input store.CreateTransactionInput) (models.Transaction, error) {
	if input.CreatedAt.IsZero() {
		input.CreatedAt = s.now()
	}
	tx, err := s.store.CreateTransaction(ctx, input)
	if err != nil {
		return models.Transaction{}, err
	}
	s.broadcaster.TransactionUpdated(events.TransactionUpdatedPayload{
		Type:        "transaction_created",
		Transaction: &tx,
		Timestamp:   s.now(),
	})
	return tx, nil
}

func (s *Service) Get(ctx context.Context, transactionID string) (models.Transaction, error) {
	return s.store.GetTransaction(ctx, transactionID)
}

func (s *Service) List(ctx context.Context, customerID string) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, customerID)
}

func (s *Service) Update(ctx context.Context, input store.UpdateTransactionInput, actorID string) (models.Transaction, error) {
	change, err := s.store.UpdateTransaction(ctx, input)
	if err != nil {
		return models.Transaction{}, err
	}
	s.emitFinancial("transaction_updated", change, nil, actorID)
	return change.Transaction, nil
}

// Delete hard-removes a transaction. Admin escape hatch only; normal
// operation never deletes financial records.
func (s *Service) Delete(ctx context.Context, transactionID string) error {
	if err := s.store.DeleteTransaction(ctx, transactionID); err != nil {
		return err
	}
	s.broadcaster.TransactionUpdated(events.TransactionUpdatedPayload{
		Type:          "transaction_deleted",
		TransactionID: transactionID,
		Timestamp:     s.now(),
	})
	return nil
}

func (s *Service) AddItem(ctx context.Context, input store.ItemInput, actorID string) (models.Transaction, error) {
	change, err := s.store.AddItem(ctx, input)
	if err != nil {
		return models.Transaction{}, err
	}
	s.emitFinancial("item_added", change, nil, actorID)
	return change.Transaction, nil
}

func (s *Service) UpdateItem(ctx context.Context, input store.ItemInput, actorID string) (models.Transaction, error) {
	change, err := s.store.UpdateItem(ctx, input)
	if err != nil {
		return models.Transaction{}, err
	}
	s.emitFinancial("item_updated", change, nil, actorID)
	return change.Transaction, nil
}

func (s *Service) DeleteItem(ctx context.Context, transactionID, itemID, actorID string) (models.Transaction, error) {
	change, err := s.store.DeleteItem(ctx, transactionID, itemID)
	if err != nil {
		return models.Transaction{}, err
	}
	s.emitFinancial("item_deleted", change, nil, actorID)
	return change.Transaction, nil
}

func (s *Service) Items(ctx context.Context, transactionID string) ([]models.TransactionItem, error) {
	return s.store.ListItems(ctx, transactionID)
}

// RecordSettlement records one payment against a transaction and, when
// the derived fields moved, broadcasts the full financial event set.
func (s *Service) RecordSettlement(ctx context.Context, input store.RecordSettlementInput) (models.PaymentSettlement, models.Transaction, error) {
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now()
	}
	result, err := s.store.RecordSettlement(ctx, input)
	if err != nil {
		return models.PaymentSettlement{}, models.Transaction{}, err
	}

	s.broadcaster.SettlementCreated(events.SettlementCreatedPayload{
		TransactionID: result.Settlement.TransactionID,
		Settlement:    result.Settlement,
		Transaction:   result.Change.Transaction,
	})
	s.emitFinancial("payment_settled", result.Change, &result.Settlement, input.CashierID)

	return result.Settlement, result.Change.Transaction, nil
}

func (s *Service) Settlements(ctx context.Context, transactionID string) ([]models.PaymentSettlement, error) {
	return s.store.ListSettlements(ctx, transactionID)
}

// emitFinancial broadcasts transactionUpdated and payment_status_updated,
// but only when payment_status or paid_amount actually moved versus the
// pre-write snapshot. Downstream UIs treat receipt of these events as
// "something changed", so a redundant broadcast is a correctness bug.
func (s *Service) emitFinancial(kind string, change store.TransactionChange, settlement *models.PaymentSettlement, actorID string) {
	tx := change.Transaction
	result := finance.Result{
		PaidAmount:    tx.PaidAmount,
		PaymentStatus: tx.PaymentStatus,
	}
	if !result.Changed(finance.Snapshot{
		PaidAmount:    change.Before.PaidAmount,
		PaymentStatus: change.Before.PaymentStatus,
	}) {
		return
	}

	s.broadcaster.TransactionUpdated(events.TransactionUpdatedPayload{
		Type:        kind,
		Transaction: &tx,
		Settlement:  settlement,
		Timestamp:   s.now(),
	})
	s.broadcaster.PaymentStatusUpdated(events.PaymentStatusPayload{
		TransactionID: tx.TransactionID,
		PaymentStatus: tx.PaymentStatus,
		BalanceAmount: tx.BalanceAmount,
		PaidAmount:    tx.PaidAmount,
		CustomerID:    tx.CustomerID,
		ORNumber:      tx.ORNumber,
		UpdatedBy:     actorID,
		Timestamp:     s.now(),
	})
}
