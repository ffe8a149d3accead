package hub

import "testing"

func TestBroadcastRespectsTopic(t *testing.T) {
	h := New()
	queueClient := &Client{ID: "a", Send: make(chan []byte, 1), Topic: TopicQueue}
	txClient := &Client{ID: "b", Send: make(chan []byte, 1), Topic: TopicTransactions}
	allClient := &Client{ID: "c", Send: make(chan []byte, 1)}
	h.Register(queueClient)
	h.Register(txClient)
	h.Register(allClient)

	h.Broadcast(TopicQueue, []byte("queue-event"))

	if len(queueClient.Send) != 1 {
		t.Fatal("queue subscriber must receive queue events")
	}
	if len(txClient.Send) != 0 {
		t.Fatal("transactions subscriber must not receive queue events")
	}
	if len(allClient.Send) != 1 {
		t.Fatal("unfiltered subscriber must receive everything")
	}
}

func TestBroadcastDropsWhenClientIsFull(t *testing.T) {
	h := New()
	client := &Client{ID: "a", Send: make(chan []byte, 1)}
	h.Register(client)

	h.Broadcast(TopicQueue, []byte("first"))
	h.Broadcast(TopicQueue, []byte("second"))

	if len(client.Send) != 1 {
		t.Fatalf("expected the overflow message to be dropped, buffered %d", len(client.Send))
	}
	if got := string(<-client.Send); got != "first" {
		t.Fatalf("expected first message kept, got %q", got)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := New()
	client := &Client{ID: "a", Send: make(chan []byte, 1)}
	h.Register(client)
	h.Unregister(client)
	h.Unregister(client)

	if _, open := <-client.Send; open {
		t.Fatal("send channel must be closed on unregister")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", h.ClientCount())
	}
}

func TestParseSubscribe(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
		topic string
	}{
		{"queue topic", `{"action":"subscribe","topic":"queue"}`, true, TopicQueue},
		{"transactions topic", `{"action":"subscribe","topic":"transactions"}`, true, TopicTransactions},
		{"firehose", `{"action":"subscribe"}`, true, ""},
		{"unsubscribe", `{"action":"unsubscribe","topic":"queue"}`, true, TopicQueue},
		{"unknown topic", `{"action":"subscribe","topic":"payments"}`, false, ""},
		{"unknown action", `{"action":"ping"}`, false, ""},
		{"garbage", `not json`, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := ParseSubscribe([]byte(tc.input))
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && msg.Topic != tc.topic {
				t.Fatalf("topic = %q, want %q", msg.Topic, tc.topic)
			}
		})
	}
}
