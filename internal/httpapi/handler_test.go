package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"escashop/backend/internal/events"
	"escashop/backend/internal/models"
	"escashop/backend/internal/queue"
	"escashop/backend/internal/store"
	"escashop/backend/internal/transactions"

	"github.com/shopspring/decimal"
)

type fakeQueueStore struct {
	registerFn   func(ctx context.Context, input store.RegisterCustomerInput) (models.Customer, error)
	getFn        func(ctx context.Context, customerID string) (models.Customer, error)
	listFn       func(ctx context.Context, statuses []string) ([]models.Customer, error)
	callNextFn   func(ctx context.Context, input store.CallNextInput) (models.Customer, error)
	callFn       func(ctx context.Context, input store.CallCustomerInput) (models.Customer, error)
	updateFn     func(ctx context.Context, input store.UpdateStatusInput) (store.StatusChange, error)
	reorderFn    func(ctx context.Context, customerIDs []string) (int, error)
	positionFn   func(ctx context.Context, customerID string) (int, error)
	setCounterFn func(ctx context.Context, counterID string, active bool) error
}

func (f fakeQueueStore) RegisterCustomer(ctx context.Context, input store.RegisterCustomerInput) (models.Customer, error) {
	if f.registerFn == nil {
		return models.Customer{}, nil
	}
	return f.registerFn(ctx, input)
}

func (f fakeQueueStore) GetCustomer(ctx context.Context, customerID string) (models.Customer, error) {
	if f.getFn == nil {
		return models.Customer{}, nil
	}
	return f.getFn(ctx, customerID)
}

func (f fakeQueueStore) ListQueue(ctx context.Context, statuses []string) ([]models.Customer, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, statuses)
}

func (f fakeQueueStore) CallNext(ctx context.Context, input store.CallNextInput) (models.Customer, error) {
	if f.callNextFn == nil {
		return models.Customer{}, nil
	}
	return f.callNextFn(ctx, input)
}

func (f fakeQueueStore) CallCustomer(ctx context.Context, input store.CallCustomerInput) (models.Customer, error) {
	if f.callFn == nil {
		return models.Customer{}, nil
	}
	return f.callFn(ctx, input)
}

func (f fakeQueueStore) UpdateQueueStatus(ctx context.Context, input store.UpdateStatusInput) (store.StatusChange, error) {
	if f.updateFn == nil {
		return store.StatusChange{}, nil
	}
	return f.updateFn(ctx, input)
}

func (f fakeQueueStore) ReorderQueue(ctx context.Context, customerIDs []string) (int, error) {
	if f.reorderFn == nil {
		return len(customerIDs), nil
	}
	return f.reorderFn(ctx, customerIDs)
}

func (f fakeQueueStore) QueuePosition(ctx context.Context, customerID string) (int, error) {
	if f.positionFn == nil {
		return 0, nil
	}
	return f.positionFn(ctx, customerID)
}

func (f fakeQueueStore) CountByStatus(ctx context.Context, status string) (int, error) {
	return 0, nil
}

func (f fakeQueueStore) ResetQueue(ctx context.Context, input store.ResetQueueInput) (store.ResetQueueResult, error) {
	return store.ResetQueueResult{}, nil
}

func (f fakeQueueStore) ListCounters(ctx context.Context) ([]models.Counter, error) {
	return nil, nil
}

func (f fakeQueueStore) SetCounterActive(ctx context.Context, counterID string, active bool) error {
	if f.setCounterFn == nil {
		return nil
	}
	return f.setCounterFn(ctx, counterID, active)
}

type fakeTxStore struct {
	createFn func(ctx context.Context, input store.CreateTransactionInput) (models.Transaction, error)
	settleFn func(ctx context.Context, input store.RecordSettlementInput) (store.SettlementResult, error)
}

func (f fakeTxStore) CreateTransaction(ctx context.Context, input store.CreateTransactionInput) (models.Transaction, error) {
	if f.createFn == nil {
		return models.Transaction{}, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeTxStore) GetTransaction(ctx context.Context, transactionID string) (models.Transaction, error) {
	return models.Transaction{TransactionID: transactionID}, nil
}

func (f fakeTxStore) ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error) {
	return nil, nil
}

func (f fakeTxStore) UpdateTransaction(ctx context.Context, input store.UpdateTransactionInput) (store.TransactionChange, error) {
	return store.TransactionChange{}, nil
}

func (f fakeTxStore) DeleteTransaction(ctx context.Context, transactionID string) error {
	return nil
}

func (f fakeTxStore) AddItem(ctx context.Context, input store.ItemInput) (store.TransactionChange, error) {
	return store.TransactionChange{}, nil
}

func (f fakeTxStore) UpdateItem(ctx context.Context, input store.ItemInput) (store.TransactionChange, error) {
	return store.TransactionChange{}, nil
}

func (f fakeTxStore) DeleteItem(ctx context.Context, transactionID, itemID string) (store.TransactionChange, error) {
	return store.TransactionChange{}, nil
}

func (f fakeTxStore) ListItems(ctx context.Context, transactionID string) ([]models.TransactionItem, error) {
	return nil, nil
}

func (f fakeTxStore) RecordSettlement(ctx context.Context, input store.RecordSettlementInput) (store.SettlementResult, error) {
	if f.settleFn == nil {
		return store.SettlementResult{}, nil
	}
	return f.settleFn(ctx, input)
}

func (f fakeTxStore) ListSettlements(ctx context.Context, transactionID string) ([]models.PaymentSettlement, error) {
	return nil, nil
}

func newTestHandler(queueStore store.QueueStore, txStore store.TransactionStore) http.Handler {
	queueSvc := queue.NewService(queueStore, &events.Nop{})
	txSvc := transactions.NewService(txStore, &events.Nop{})
	return IdentityMiddleware(NewHandler(queueSvc, txSvc).Routes())
}

func doRequest(h http.Handler, method, path, role string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if role != "" {
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("X-User-Role", role)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestRegisterCustomerSuccess(t *testing.T) {
	h := newTestHandler(fakeQueueStore{
		registerFn: func(ctx context.Context, input store.RegisterCustomerInput) (models.Customer, error) {
			if input.SalesAgentID != "user-1" {
				t.Fatalf("expected acting user as sales agent, got %q", input.SalesAgentID)
			}
			return models.Customer{
				CustomerID:  "cust-1",
				Name:        input.Name,
				QueueStatus: models.StatusWaiting,
				TokenNumber: 12,
			}, nil
		},
	}, fakeTxStore{})

	resp := doRequest(h, http.MethodPost, "/api/customers", "sales", map[string]interface{}{
		"name":           "Maria Cruz",
		"contact_number": "09171234567",
		"priority_flags": map[string]bool{"senior_citizen": true},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var customer models.Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if customer.TokenNumber != 12 || customer.QueueStatus != models.StatusWaiting {
		t.Fatalf("unexpected customer: %+v", customer)
	}
}

func TestRegisterCustomerMissingName(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/customers", "sales", map[string]string{"name": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestRegisterCustomerNoIdentity(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/customers", "", map[string]string{"name": "Maria"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodGet, "/api/queue", "manager", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "invalid_role" {
		t.Fatalf("expected invalid_role, got %s", errResp.Error.Code)
	}
}

func TestCallNextQueueEmpty(t *testing.T) {
	h := newTestHandler(fakeQueueStore{
		callNextFn: func(ctx context.Context, input store.CallNextInput) (models.Customer, error) {
			return models.Customer{}, store.ErrQueueEmpty
		},
	}, fakeTxStore{})

	resp := doRequest(h, http.MethodPost, "/api/queue/call-next", "cashier", map[string]string{"counter_id": "counter-1"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "queue_empty" {
		t.Fatalf("expected queue_empty, got %s", errResp.Error.Code)
	}
}

func TestCallNextForbiddenForSales(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/queue/call-next", "sales", map[string]string{"counter_id": "counter-1"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestChangeStatusConflict(t *testing.T) {
	h := newTestHandler(fakeQueueStore{
		getFn: func(ctx context.Context, customerID string) (models.Customer, error) {
			return models.Customer{CustomerID: customerID, QueueStatus: models.StatusWaiting}, nil
		},
		updateFn: func(ctx context.Context, input store.UpdateStatusInput) (store.StatusChange, error) {
			return store.StatusChange{}, store.ErrStatusConflict
		},
	}, fakeTxStore{})

	resp := doRequest(h, http.MethodPost, "/api/customers/cust-1/status", "cashier", map[string]string{"status": "serving"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestChangeStatusInvalidTransition(t *testing.T) {
	h := newTestHandler(fakeQueueStore{
		getFn: func(ctx context.Context, customerID string) (models.Customer, error) {
			return models.Customer{CustomerID: customerID, QueueStatus: models.StatusWaiting}, nil
		},
	}, fakeTxStore{})

	// waiting -> processing has no edge; cashier cannot force it.
	resp := doRequest(h, http.MethodPost, "/api/customers/cust-1/status", "cashier", map[string]string{"status": "processing"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", errResp.Error.Code)
	}
}

func TestResetRequiresAdmin(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/queue/reset", "cashier", map[string]string{"reason": "testing"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}

	resp = doRequest(h, http.MethodPost, "/api/queue/reset", "admin", map[string]string{"reason": "end of day"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}

func TestReorderReportsRowsMoved(t *testing.T) {
	h := newTestHandler(fakeQueueStore{
		reorderFn: func(ctx context.Context, customerIDs []string) (int, error) {
			// One submitted id is no longer waiting and gets skipped.
			return len(customerIDs) - 1, nil
		},
	}, fakeTxStore{})

	resp := doRequest(h, http.MethodPost, "/api/queue/reorder", "admin", map[string][]string{
		"customer_ids": {"cust-1", "cust-2", "cust-3"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["reordered"] != 2 {
		t.Fatalf("expected 2 reordered, got %d", body["reordered"])
	}
}

func TestCounterActiveRequiresAdmin(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/counters/counter-1/active", "cashier", map[string]bool{"is_active": false})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestCreateTransactionDuplicateOR(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{
		createFn: func(ctx context.Context, input store.CreateTransactionInput) (models.Transaction, error) {
			return models.Transaction{}, store.ErrDuplicateORNumber
		},
	})

	resp := doRequest(h, http.MethodPost, "/api/transactions", "cashier", map[string]string{
		"customer_id": "cust-1",
		"or_number":   "OR-100",
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Error.Code != "duplicate_or_number" {
		t.Fatalf("expected duplicate_or_number, got %s", errResp.Error.Code)
	}
}

func TestCreateTransactionNegativeBase(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/transactions", "cashier", map[string]interface{}{
		"customer_id": "cust-1",
		"or_number":   "OR-100",
		"base_amount": "-5",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestRecordSettlementSuccess(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{
		settleFn: func(ctx context.Context, input store.RecordSettlementInput) (store.SettlementResult, error) {
			if input.CashierID != "user-1" {
				t.Fatalf("expected acting user as cashier, got %q", input.CashierID)
			}
			return store.SettlementResult{
				Settlement: models.PaymentSettlement{
					SettlementID:  "settle-1",
					TransactionID: input.TransactionID,
					Amount:        input.Amount,
				},
				Change: store.TransactionChange{
					Transaction: models.Transaction{
						TransactionID: input.TransactionID,
						PaidAmount:    input.Amount,
						PaymentStatus: models.PaymentPartial,
					},
				},
			}, nil
		},
	})

	resp := doRequest(h, http.MethodPost, "/api/transactions/tx-1/settlements", "cashier", map[string]string{
		"amount":       "500",
		"payment_mode": "gcash",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRecordSettlementRejectsNonPositiveAmount(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/transactions/tx-1/settlements", "cashier", map[string]string{
		"amount":       "0",
		"payment_mode": "cash",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestPositionLookup(t *testing.T) {
	h := newTestHandler(fakeQueueStore{
		positionFn: func(ctx context.Context, customerID string) (int, error) {
			return 3, nil
		},
	}, fakeTxStore{})

	resp := doRequest(h, http.MethodGet, "/api/customers/cust-1/position", "sales", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["position"] != 3 {
		t.Fatalf("expected position 3, got %d", body["position"])
	}
}

func TestListQueueInvalidStatusFilter(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodGet, "/api/queue?statuses=waiting,parked", "sales", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	resp := doRequest(h, http.MethodPost, "/api/queue/call-next", "cashier", map[string]string{
		"counter_id": "counter-1",
		"surprise":   "field",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestNegativePaymentAmountRejected(t *testing.T) {
	h := newTestHandler(fakeQueueStore{}, fakeTxStore{})
	negative := decimal.NewFromInt(-10)
	resp := doRequest(h, http.MethodPost, "/api/customers", "sales", map[string]interface{}{
		"name":           "Maria",
		"payment_amount": negative,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
