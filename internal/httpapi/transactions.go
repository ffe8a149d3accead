package httpapi

import (
	"net/http"
	"strings"

	"escashop/backend/internal/rbac"
	"escashop/backend/internal/store"

	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	CustomerID  string           `json:"customer_id"`
	ORNumber    string           `json:"or_number"`
	BaseAmount  *decimal.Decimal `json:"base_amount"`
	PaymentMode string           `json:"payment_mode"`
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateTransaction(w, r)
	case http.MethodGet:
		customers, err := h.transactions.List(r.Context(), r.URL.Query().Get("customer_id"))
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customers)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.ORNumber = strings.TrimSpace(req.ORNumber)
	if req.CustomerID == "" || req.ORNumber == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_id and or_number are required")
		return
	}
	if req.BaseAmount != nil && req.BaseAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_request", "base_amount must not be negative")
		return
	}

	input := store.CreateTransactionInput{
		CustomerID:  req.CustomerID,
		ORNumber:    req.ORNumber,
		BaseAmount:  req.BaseAmount,
		PaymentMode: strings.TrimSpace(req.PaymentMode),
	}
	if actor.Role == rbac.RoleCashier {
		input.CashierID = actor.UserID
	} else {
		input.SalesAgentID = actor.UserID
	}
	transaction, err := h.transactions.Create(r.Context(), input)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transaction)
}

func (h *Handler) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	transactionID := parts[0]

	switch {
	case len(parts) == 1:
		h.handleTransactionByID(w, r, transactionID)
	case parts[1] == "items" && len(parts) == 2:
		h.handleTransactionItems(w, r, transactionID)
	case parts[1] == "items" && len(parts) == 3:
		h.handleTransactionItem(w, r, transactionID, parts[2])
	case parts[1] == "settlements" && len(parts) == 2:
		h.handleTransactionSettlements(w, r, transactionID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type updateTransactionRequest struct {
	BaseAmount  *decimal.Decimal `json:"base_amount"`
	PaymentMode string           `json:"payment_mode"`
}

func (h *Handler) handleTransactionByID(w http.ResponseWriter, r *http.Request, transactionID string) {
	switch r.Method {
	case http.MethodGet:
		transaction, err := h.transactions.Get(r.Context(), transactionID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transaction)
	case http.MethodPatch:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req updateTransactionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.BaseAmount != nil && req.BaseAmount.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid_request", "base_amount must not be negative")
			return
		}
		transaction, err := h.transactions.Update(r.Context(), store.UpdateTransactionInput{
			TransactionID: transactionID,
			BaseAmount:    req.BaseAmount,
			PaymentMode:   strings.TrimSpace(req.PaymentMode),
		}, actor.UserID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transaction)
	case http.MethodDelete:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		if err := h.transactions.Delete(r.Context(), transactionID); err != nil {
			h.writeMapped(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type itemRequest struct {
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (req itemRequest) validate() (string, bool) {
	if strings.TrimSpace(req.ItemName) == "" {
		return "item_name is required", false
	}
	if req.Quantity <= 0 {
		return "quantity must be positive", false
	}
	if req.UnitPrice.IsNegative() {
		return "unit_price must not be negative", false
	}
	return "", true
}

func (h *Handler) handleTransactionItems(w http.ResponseWriter, r *http.Request, transactionID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := h.transactions.Items(r.Context(), transactionID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req itemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if msg, valid := req.validate(); !valid {
			writeError(w, http.StatusBadRequest, "invalid_request", msg)
			return
		}
		transaction, err := h.transactions.AddItem(r.Context(), store.ItemInput{
			TransactionID: transactionID,
			ItemName:      strings.TrimSpace(req.ItemName),
			Quantity:      req.Quantity,
			UnitPrice:     req.UnitPrice,
		}, actor.UserID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, transaction)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleTransactionItem(w http.ResponseWriter, r *http.Request, transactionID, itemID string) {
	switch r.Method {
	case http.MethodPut:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req itemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if msg, valid := req.validate(); !valid {
			writeError(w, http.StatusBadRequest, "invalid_request", msg)
			return
		}
		transaction, err := h.transactions.UpdateItem(r.Context(), store.ItemInput{
			TransactionID: transactionID,
			ItemID:        itemID,
			ItemName:      strings.TrimSpace(req.ItemName),
			Quantity:      req.Quantity,
			UnitPrice:     req.UnitPrice,
		}, actor.UserID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transaction)
	case http.MethodDelete:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		transaction, err := h.transactions.DeleteItem(r.Context(), transactionID, itemID, actor.UserID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, transaction)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type settlementRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode string          `json:"payment_mode"`
}

type settlementResponse struct {
	Settlement  interface{} `json:"settlement"`
	Transaction interface{} `json:"transaction"`
}

func (h *Handler) handleTransactionSettlements(w http.ResponseWriter, r *http.Request, transactionID string) {
	switch r.Method {
	case http.MethodGet:
		settlements, err := h.transactions.Settlements(r.Context(), transactionID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settlements)
	case http.MethodPost:
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		var req settlementRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !req.Amount.IsPositive() {
			writeError(w, http.StatusBadRequest, "invalid_request", "amount must be positive")
			return
		}
		if strings.TrimSpace(req.PaymentMode) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "payment_mode is required")
			return
		}
		settlement, transaction, err := h.transactions.RecordSettlement(r.Context(), store.RecordSettlementInput{
			TransactionID: transactionID,
			Amount:        req.Amount,
			PaymentMode:   strings.TrimSpace(req.PaymentMode),
			CashierID:     actor.UserID,
		})
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, settlementResponse{Settlement: settlement, Transaction: transaction})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
