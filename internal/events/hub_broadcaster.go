package events

import (
	"encoding/json"
	"log"
	"time"

	"escashop/backend/internal/hub"
)

type envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

// HubBroadcaster serializes events into envelopes and fans them out
// through the realtime hub.
type HubBroadcaster struct {
	hub *hub.Hub
}

func NewHubBroadcaster(h *hub.Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: h}
}

func (b *HubBroadcaster) emit(topic, eventType string, payload interface{}) {
	data, err := json.Marshal(envelope{
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("broadcast marshal error type=%s: %v", eventType, err)
		return
	}
	b.hub.Broadcast(topic, data)
}

func (b *HubBroadcaster) QueueStatusChanged(payload StatusChangedPayload) {
	b.emit(hub.TopicQueue, TypeQueueStatusChanged, payload)
}

func (b *HubBroadcaster) QueueUpdate(payload QueueUpdatePayload) {
	b.emit(hub.TopicQueue, TypeQueueUpdate, payload)
}

func (b *HubBroadcaster) TransactionUpdated(payload TransactionUpdatedPayload) {
	b.emit(hub.TopicTransactions, TypeTransactionUpdated, payload)
}

func (b *HubBroadcaster) PaymentStatusUpdated(payload PaymentStatusPayload) {
	b.emit(hub.TopicTransactions, TypePaymentStatusUpdated, payload)
}

func (b *HubBroadcaster) SettlementCreated(payload SettlementCreatedPayload) {
	b.emit(hub.TopicTransactions, TypeSettlementCreated, payload)
}
