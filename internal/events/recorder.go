package events

import "sync"

// Recorder captures emitted events for test assertions.
type Recorder struct {
	mu sync.Mutex

	StatusChanges  []StatusChangedPayload
	QueueUpdates   []QueueUpdatePayload
	TxUpdates      []TransactionUpdatedPayload
	PaymentUpdates []PaymentStatusPayload
	Settlements    []SettlementCreatedPayload
}

func (r *Recorder) QueueStatusChanged(payload StatusChangedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StatusChanges = append(r.StatusChanges, payload)
}

func (r *Recorder) QueueUpdate(payload QueueUpdatePayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.QueueUpdates = append(r.QueueUpdates, payload)
}

func (r *Recorder) TransactionUpdated(payload TransactionUpdatedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TxUpdates = append(r.TxUpdates, payload)
}

func (r *Recorder) PaymentStatusUpdated(payload PaymentStatusPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PaymentUpdates = append(r.PaymentUpdates, payload)
}

func (r *Recorder) SettlementCreated(payload SettlementCreatedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Settlements = append(r.Settlements, payload)
}
