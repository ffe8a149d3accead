package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"escashop/backend/internal/models"
	"escashop/backend/internal/queue"
	"escashop/backend/internal/store"
	"escashop/backend/internal/transactions"

	"github.com/shopspring/decimal"
)

type Handler struct {
	queue        *queue.Service
	transactions *transactions.Service
}

func NewHandler(queueSvc *queue.Service, txSvc *transactions.Service) *Handler {
	return &Handler{queue: queueSvc, transactions: txSvc}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/customers", h.handleCustomers)
	mux.HandleFunc("/api/customers/", h.handleCustomerActions)
	mux.HandleFunc("/api/queue", h.handleQueue)
	mux.HandleFunc("/api/queue/call-next", h.handleCallNext)
	mux.HandleFunc("/api/queue/call", h.handleCallCustomer)
	mux.HandleFunc("/api/queue/reorder", h.handleReorder)
	mux.HandleFunc("/api/queue/reset", h.handleReset)
	mux.HandleFunc("/api/counters", h.handleCounters)
	mux.HandleFunc("/api/counters/", h.handleCounterActions)
	mux.HandleFunc("/api/transactions", h.handleTransactions)
	mux.HandleFunc("/api/transactions/", h.handleTransactionActions)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type registerCustomerRequest struct {
	Name          string               `json:"name"`
	ContactNumber string               `json:"contact_number"`
	Email         string               `json:"email"`
	OrderNotes    string               `json:"order_notes"`
	PriorityFlags models.PriorityFlags `json:"priority_flags"`
	PaymentAmount *decimal.Decimal     `json:"payment_amount"`
	ORNumber      string               `json:"or_number"`
	PaymentMode   string               `json:"payment_mode"`
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req registerCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if req.PaymentAmount != nil && req.PaymentAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_request", "payment_amount must not be negative")
		return
	}

	customer, err := h.queue.Register(r.Context(), store.RegisterCustomerInput{
		Name:          req.Name,
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Email:         strings.TrimSpace(req.Email),
		OrderNotes:    req.OrderNotes,
		PriorityFlags: req.PriorityFlags,
		PaymentAmount: req.PaymentAmount,
		ORNumber:      strings.TrimSpace(req.ORNumber),
		PaymentMode:   strings.TrimSpace(req.PaymentMode),
		SalesAgentID:  actor.UserID,
	})
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (h *Handler) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/customers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	customerID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		customer, err := h.queue.Customer(r.Context(), customerID)
		if err != nil {
			h.writeMapped(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customer)
		return
	}

	switch parts[1] {
	case "position":
		h.handlePosition(w, r, customerID)
	case "status":
		h.handleChangeStatus(w, r, customerID)
	case "complete":
		h.handleComplete(w, r, customerID)
	case "cancel":
		h.handleCancel(w, r, customerID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request, customerID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	position, err := h.queue.Position(r.Context(), customerID)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"position": position})
}

type changeStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request, customerID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req changeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	target := strings.ToLower(strings.TrimSpace(req.Status))
	if !models.ValidStatus(target) {
		writeError(w, http.StatusBadRequest, "invalid_status", "unrecognized queue status")
		return
	}

	var customer models.Customer
	var err error
	if target == models.StatusCancelled {
		customer, err = h.queue.CancelService(r.Context(), customerID, req.Reason, actor)
	} else {
		customer, err = h.queue.ChangeStatus(r.Context(), customerID, target, actor)
	}
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

type completeRequest struct {
	CounterID string `json:"counter_id"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request, customerID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.queue.CompleteService(r.Context(), customerID, req.CounterID, actor)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request, customerID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.queue.CancelService(r.Context(), customerID, req.Reason, actor)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var statuses []string
	if raw := r.URL.Query().Get("statuses"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			statuses = append(statuses, strings.ToLower(strings.TrimSpace(status)))
		}
	}
	customers, err := h.queue.ListQueue(r.Context(), statuses)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

type callNextRequest struct {
	CounterID string `json:"counter_id"`
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req callNextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CounterID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "counter_id is required")
		return
	}
	customer, err := h.queue.CallNext(r.Context(), req.CounterID, actor)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

type callCustomerRequest struct {
	CustomerID string `json:"customer_id"`
	CounterID  string `json:"counter_id"`
}

func (h *Handler) handleCallCustomer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req callCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CustomerID == "" || req.CounterID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_id and counter_id are required")
		return
	}
	customer, err := h.queue.CallCustomer(r.Context(), req.CustomerID, req.CounterID, actor)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

type reorderRequest struct {
	CustomerIDs []string `json:"customer_ids"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reordered, err := h.queue.ReorderQueue(r.Context(), req.CustomerIDs, actor)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reordered": reordered})
}

type resetRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.queue.ResetQueue(r.Context(), actor, req.Reason)
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCounters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	counters, err := h.queue.Counters(r.Context())
	if err != nil {
		h.writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counters)
}

type counterActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (h *Handler) handleCounterActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/counters/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "active" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	var req counterActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.queue.SetCounterActive(r.Context(), parts[0], req.IsActive); err != nil {
		h.writeMapped(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func (h *Handler) writeMapped(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeError(w, status, code, message)
}

// mapError translates core errors into HTTP status and machine-readable
// code. Authorization, state and not-found failures stay distinguishable
// so clients can render "not allowed" vs "nothing to do" vs "try again".
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, queue.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, queue.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, store.ErrQueueEmpty):
		return http.StatusNotFound, "queue_empty"
	case errors.Is(err, store.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found"
	case errors.Is(err, store.ErrCustomerNotWaiting):
		return http.StatusConflict, "customer_not_waiting"
	case errors.Is(err, store.ErrStatusConflict):
		return http.StatusConflict, "status_conflict"
	case errors.Is(err, store.ErrCounterNotFound):
		return http.StatusNotFound, "counter_not_found"
	case errors.Is(err, store.ErrCounterUnavailable):
		return http.StatusConflict, "counter_unavailable"
	case errors.Is(err, store.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, store.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, store.ErrDuplicateORNumber):
		return http.StatusConflict, "duplicate_or_number"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
