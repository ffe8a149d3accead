package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"escashop/backend/internal/finance"
	"escashop/backend/internal/models"
	"escashop/backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `
	t.transaction_id, t.customer_id, t.or_number,
	t.base_amount::text, t.amount::text, t.paid_amount::text, t.balance_amount::text,
	t.payment_status, t.payment_mode, t.sales_agent_id, t.cashier_id,
	t.created_at, t.updated_at
`

func (s *Store) CreateTransaction(ctx context.Context, input store.CreateTransactionInput) (models.Transaction, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Transaction{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE or_number = $1)
	`, input.ORNumber)
	if err = row.Scan(&exists); err != nil {
		return models.Transaction{}, err
	}
	if exists {
		err = store.ErrDuplicateORNumber
		return models.Transaction{}, err
	}

	base := input.BaseAmount
	if base == nil {
		// One-time fallback at creation only: adopt the registration
		// payment amount when the caller supplied none.
		var paymentNull sql.NullString
		row = tx.QueryRow(ctx, `
			SELECT payment_amount::text FROM customers WHERE customer_id = $1
		`, input.CustomerID)
		if err = row.Scan(&paymentNull); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				err = store.ErrCustomerNotFound
			}
			return models.Transaction{}, err
		}
		if paymentNull.Valid {
			amount, parseErr := decimal.NewFromString(paymentNull.String)
			if parseErr != nil {
				err = parseErr
				return models.Transaction{}, err
			}
			base = &amount
		}
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result := finance.Reconcile(base, decimal.Zero, nil, nil)

	var transaction models.Transaction
	row = tx.QueryRow(ctx, `
		INSERT INTO transactions (
			transaction_id, customer_id, or_number, base_amount,
			amount, paid_amount, balance_amount, payment_status,
			payment_mode, sales_agent_id, cashier_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
		RETURNING `+transactionReturning(),
		uuid.NewString(), input.CustomerID, input.ORNumber, decimalParam(base),
		result.Amount.String(), result.PaidAmount.String(), result.BalanceAmount.String(),
		result.PaymentStatus, nullIfEmpty(input.PaymentMode),
		nullIfEmpty(input.SalesAgentID), nullIfEmpty(input.CashierID), createdAt)
	transaction, err = scanTransaction(row)
	if err != nil {
		return models.Transaction{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Transaction{}, err
	}
	return transaction, nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.transaction_id = $1
	`, transactionID)
	transaction, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Transaction{}, store.ErrTransactionNotFound
		}
		return models.Transaction{}, err
	}
	return transaction, nil
}

func (s *Store) ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
	`
	var args []interface{}
	if customerID != "" {
		query += " WHERE t.customer_id = $1"
		args = append(args, customerID)
	}
	query += " ORDER BY t.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, input store.UpdateTransactionInput) (store.TransactionChange, error) {
	return s.withRecompute(ctx, input.TransactionID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE transactions
			SET base_amount = COALESCE($2, base_amount),
				payment_mode = COALESCE($3, payment_mode)
			WHERE transaction_id = $1
		`, input.TransactionID, decimalParam(input.BaseAmount), nullIfEmpty(input.PaymentMode))
		return err
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, transactionID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM transactions WHERE transaction_id = $1
	`, transactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) AddItem(ctx context.Context, input store.ItemInput) (store.TransactionChange, error) {
	return s.withRecompute(ctx, input.TransactionID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO transaction_items (item_id, transaction_id, item_name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, uuid.NewString(), input.TransactionID, input.ItemName, input.Quantity, input.UnitPrice.String())
		return err
	})
}

func (s *Store) UpdateItem(ctx context.Context, input store.ItemInput) (store.TransactionChange, error) {
	return s.withRecompute(ctx, input.TransactionID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE transaction_items
			SET item_name = $3, quantity = $4, unit_price = $5
			WHERE item_id = $1 AND transaction_id = $2
		`, input.ItemID, input.TransactionID, input.ItemName, input.Quantity, input.UnitPrice.String())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrItemNotFound
		}
		return nil
	})
}

func (s *Store) DeleteItem(ctx context.Context, transactionID, itemID string) (store.TransactionChange, error) {
	return s.withRecompute(ctx, transactionID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM transaction_items WHERE item_id = $1 AND transaction_id = $2
		`, itemID, transactionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrItemNotFound
		}
		return nil
	})
}

func (s *Store) ListItems(ctx context.Context, transactionID string) ([]models.TransactionItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT item_id, transaction_id, item_name, quantity, unit_price::text
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY item_name ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.TransactionItem
	for rows.Next() {
		var item models.TransactionItem
		var priceText string
		if err := rows.Scan(&item.ItemID, &item.TransactionID, &item.ItemName, &item.Quantity, &priceText); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(priceText); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) RecordSettlement(ctx context.Context, input store.RecordSettlementInput) (store.SettlementResult, error) {
	var settlement models.PaymentSettlement
	change, err := s.withRecompute(ctx, input.TransactionID, func(tx pgx.Tx) error {
		paidAt := input.PaidAt
		if paidAt.IsZero() {
			paidAt = time.Now().UTC()
		}
		settlement = models.PaymentSettlement{
			SettlementID:  uuid.NewString(),
			TransactionID: input.TransactionID,
			Amount:        input.Amount,
			PaymentMode:   input.PaymentMode,
			CashierID:     input.CashierID,
			PaidAt:        paidAt,
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO payment_settlements (settlement_id, transaction_id, amount, payment_mode, cashier_id, paid_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, settlement.SettlementID, settlement.TransactionID, settlement.Amount.String(),
			settlement.PaymentMode, settlement.CashierID, settlement.PaidAt)
		return err
	})
	if err != nil {
		return store.SettlementResult{}, err
	}
	return store.SettlementResult{Settlement: settlement, Change: change}, nil
}

func (s *Store) ListSettlements(ctx context.Context, transactionID string) ([]models.PaymentSettlement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT settlement_id, transaction_id, amount::text, payment_mode, cashier_id, paid_at
		FROM payment_settlements
		WHERE transaction_id = $1
		ORDER BY paid_at ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []models.PaymentSettlement
	for rows.Next() {
		var settlement models.PaymentSettlement
		var amountText string
		if err := rows.Scan(&settlement.SettlementID, &settlement.TransactionID, &amountText,
			&settlement.PaymentMode, &settlement.CashierID, &settlement.PaidAt); err != nil {
			return nil, err
		}
		if settlement.Amount, err = decimal.NewFromString(amountText); err != nil {
			return nil, err
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settlements, nil
}

// withRecompute runs mutate and the derived-field recomputation inside
// one transaction: the transaction row is locked first, its pre-write
// snapshot captured, and the reconciled fields persisted atomically with
// the triggering write.
func (s *Store) withRecompute(ctx context.Context, transactionID string, mutate func(pgx.Tx) error) (store.TransactionChange, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.TransactionChange{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	before, err := lockSnapshot(ctx, tx, transactionID)
	if err != nil {
		return store.TransactionChange{}, err
	}

	if err = mutate(tx); err != nil {
		return store.TransactionChange{}, err
	}

	transaction, err := recompute(ctx, tx, transactionID)
	if err != nil {
		return store.TransactionChange{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.TransactionChange{}, err
	}
	return store.TransactionChange{Transaction: transaction, Before: before}, nil
}

func lockSnapshot(ctx context.Context, tx pgx.Tx, transactionID string) (store.FinancialSnapshot, error) {
	var paidText, status string
	row := tx.QueryRow(ctx, `
		SELECT paid_amount::text, payment_status
		FROM transactions
		WHERE transaction_id = $1
		FOR UPDATE
	`, transactionID)
	if err := row.Scan(&paidText, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.FinancialSnapshot{}, store.ErrTransactionNotFound
		}
		return store.FinancialSnapshot{}, err
	}
	paid, err := decimal.NewFromString(paidText)
	if err != nil {
		return store.FinancialSnapshot{}, err
	}
	return store.FinancialSnapshot{PaidAmount: paid, PaymentStatus: status}, nil
}

// recompute re-derives amount, paid_amount, balance_amount and
// payment_status from the current line items and settlements. The latest
// settlement's mode becomes the transaction's effective payment mode.
func recompute(ctx context.Context, tx pgx.Tx, transactionID string) (models.Transaction, error) {
	var baseNull, storedText sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT base_amount::text, amount::text
		FROM transactions
		WHERE transaction_id = $1
	`, transactionID)
	if err := row.Scan(&baseNull, &storedText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Transaction{}, store.ErrTransactionNotFound
		}
		return models.Transaction{}, err
	}

	var base *decimal.Decimal
	if baseNull.Valid {
		parsed, err := decimal.NewFromString(baseNull.String)
		if err != nil {
			return models.Transaction{}, err
		}
		base = &parsed
	}
	stored := decimal.Zero
	if storedText.Valid {
		parsed, err := decimal.NewFromString(storedText.String)
		if err != nil {
			return models.Transaction{}, err
		}
		stored = parsed
	}

	itemRows, err := tx.Query(ctx, `
		SELECT quantity, unit_price::text
		FROM transaction_items
		WHERE transaction_id = $1
	`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	var items []finance.ItemLine
	for itemRows.Next() {
		var quantity int
		var priceText string
		if err := itemRows.Scan(&quantity, &priceText); err != nil {
			itemRows.Close()
			return models.Transaction{}, err
		}
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			itemRows.Close()
			return models.Transaction{}, err
		}
		items = append(items, finance.ItemLine{Quantity: quantity, UnitPrice: price})
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return models.Transaction{}, err
	}

	settlementRows, err := tx.Query(ctx, `
		SELECT amount::text, payment_mode
		FROM payment_settlements
		WHERE transaction_id = $1
		ORDER BY paid_at ASC
	`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	var settlements []finance.SettlementLine
	var latestMode string
	for settlementRows.Next() {
		var amountText, mode string
		if err := settlementRows.Scan(&amountText, &mode); err != nil {
			settlementRows.Close()
			return models.Transaction{}, err
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			settlementRows.Close()
			return models.Transaction{}, err
		}
		settlements = append(settlements, finance.SettlementLine{Amount: amount})
		latestMode = mode
	}
	settlementRows.Close()
	if err := settlementRows.Err(); err != nil {
		return models.Transaction{}, err
	}

	result := finance.Reconcile(base, stored, items, settlements)

	row = tx.QueryRow(ctx, `
		UPDATE transactions t
		SET amount = $2,
			paid_amount = $3,
			balance_amount = $4,
			payment_status = $5,
			payment_mode = COALESCE(NULLIF($6, ''), t.payment_mode),
			updated_at = $7
		WHERE t.transaction_id = $1
		RETURNING `+transactionColumns+`
	`, transactionID, result.Amount.String(), result.PaidAmount.String(),
		result.BalanceAmount.String(), result.PaymentStatus, latestMode, time.Now().UTC())
	return scanTransaction(row)
}

func insertInitialTransaction(ctx context.Context, tx pgx.Tx, customerID string, input store.RegisterCustomerInput, createdAt time.Time) error {
	var exists bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE or_number = $1)
	`, input.ORNumber)
	if err := row.Scan(&exists); err != nil {
		return err
	}
	if exists {
		return store.ErrDuplicateORNumber
	}

	result := finance.Reconcile(input.PaymentAmount, decimal.Zero, nil, nil)
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			transaction_id, customer_id, or_number, base_amount,
			amount, paid_amount, balance_amount, payment_status,
			payment_mode, sales_agent_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
	`, uuid.NewString(), customerID, input.ORNumber, decimalParam(input.PaymentAmount),
		result.Amount.String(), result.PaidAmount.String(), result.BalanceAmount.String(),
		result.PaymentStatus, nullIfEmpty(input.PaymentMode), nullIfEmpty(input.SalesAgentID), createdAt)
	return err
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var transaction models.Transaction
	var baseNull, modeNull, agentNull, cashierNull sql.NullString
	var amountText, paidText, balanceText string
	err := row.Scan(
		&transaction.TransactionID, &transaction.CustomerID, &transaction.ORNumber,
		&baseNull, &amountText, &paidText, &balanceText,
		&transaction.PaymentStatus, &modeNull, &agentNull, &cashierNull,
		&transaction.CreatedAt, &transaction.UpdatedAt,
	)
	if err != nil {
		return models.Transaction{}, err
	}
	if baseNull.Valid {
		base, err := decimal.NewFromString(baseNull.String)
		if err != nil {
			return models.Transaction{}, err
		}
		transaction.BaseAmount = &base
	}
	if transaction.Amount, err = decimal.NewFromString(amountText); err != nil {
		return models.Transaction{}, err
	}
	if transaction.PaidAmount, err = decimal.NewFromString(paidText); err != nil {
		return models.Transaction{}, err
	}
	if transaction.BalanceAmount, err = decimal.NewFromString(balanceText); err != nil {
		return models.Transaction{}, err
	}
	transaction.PaymentMode = modeNull.String
	transaction.SalesAgentID = nullStringPtr(agentNull)
	transaction.CashierID = nullStringPtr(cashierNull)
	return transaction, nil
}

func decimalParam(value *decimal.Decimal) interface{} {
	if value == nil {
		return nil
	}
	return value.String()
}

func transactionReturning() string {
	return `
	transaction_id, customer_id, or_number,
	base_amount::text, amount::text, paid_amount::text, balance_amount::text,
	payment_status, payment_mode, sales_agent_id, cashier_id,
	created_at, updated_at
`
}
