package session

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/relayx/relayx-go/internal/telemetry"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{APIKey: "key", Secret: "secret", ClientID: "client-test"}, testLogger(), telemetry.New("test"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestOnOffIdempotentInsert(t *testing.T) {
	m := newTestManager(t)

	first, err := m.On("orders.created", func([]byte) {})
	if err != nil {
		t.Fatalf("first On: %v", err)
	}
	if !first {
		t.Error("first registration should return true")
	}

	second, err := m.On("orders.created", func([]byte) {})
	if err != nil {
		t.Fatalf("second On: %v", err)
	}
	if second {
		t.Error("second registration of the same topic should return false")
	}

	if !m.IsRegistered("orders.created") {
		t.Error("expected topic to be registered")
	}

	ok, err := m.Off("orders.created")
	if err != nil || !ok {
		t.Fatalf("Off on known topic: ok=%v err=%v", ok, err)
	}
	ok, err = m.Off("orders.created")
	if err != nil || ok {
		t.Fatalf("Off on unknown topic should return false, got ok=%v err=%v", ok, err)
	}
}

func TestOnRejectsReservedAndInvalidTopics(t *testing.T) {
	m := newTestManager(t)

	cases := []string{"CONNECTED", "", "has space", "has$dollar"}
	for _, topic := range cases {
		if _, err := m.On(topic, func([]byte) {}); err == nil {
			t.Errorf("On(%q) should have failed validation", topic)
		}
	}
}

func TestPublishBuffersWhileDisconnected(t *testing.T) {
	m := newTestManager(t)

	for n := 1; n <= 3; n++ {
		sent, err := m.Publish("orders", json.RawMessage(fmt.Sprintf(`{"n":%d}`, n)))
		if err != nil {
			t.Fatalf("Publish n=%d: %v", n, err)
		}
		if sent {
			t.Errorf("Publish n=%d should report not-sent while disconnected", n)
		}
	}

	m.mu.Lock()
	buffered := len(m.offlineBuffer)
	m.mu.Unlock()
	if buffered != 3 {
		t.Fatalf("offline buffer length = %d, want 3", buffered)
	}
}

// startJetStreamServer boots an in-process nats-server with JetStream
// enabled, grounded in the standard nats-server/v2 embedding pattern.
func startJetStreamServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	s, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting in-process nats-server: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		t.Fatal("in-process nats-server did not become ready")
	}
	t.Cleanup(s.Shutdown)
	return s
}

// serveNamespace answers the administrative get_namespace subject with a
// fixed namespace, standing in for the relay-x account service this SDK
// talks to in production.
func serveNamespace(t *testing.T, nc *nats.Conn, namespace string) {
	t.Helper()
	sub, err := nc.Subscribe("accounts.user.get_namespace", func(msg *nats.Msg) {
		reply, _ := json.Marshal(map[string]any{
			"status": "NAMESPACE_RETRIEVE_SUCCESS",
			"data":   map[string]string{"namespace": namespace},
		})
		_ = msg.Respond(reply)
	})
	if err != nil {
		t.Fatalf("subscribing namespace responder: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
}

func TestConnectPublishReceiveWithLoopbackSuppression(t *testing.T) {
	srv := startJetStreamServer(t)

	admin, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("admin connect: %v", err)
	}
	defer admin.Close()
	serveNamespace(t, admin, "ns-test")

	m := newTestManager(t)
	m.testURLs = []string{srv.ClientURL()}

	received := make(chan []byte, 1)
	if _, err := m.On("orders.created", func(payload []byte) {
		received <- payload
	}); err != nil {
		t.Fatalf("On: %v", err)
	}

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Close()

	if m.Namespace() != "ns-test" {
		t.Fatalf("Namespace() = %q, want ns-test", m.Namespace())
	}

	// A self-published message must be suppressed (same client_id).
	if _, err := m.Publish("orders.created", json.RawMessage(`{"order_id":1}`)); err != nil {
		t.Fatalf("self publish: %v", err)
	}
	select {
	case <-received:
		t.Fatal("loopback message should have been suppressed, not delivered")
	case <-time.After(300 * time.Millisecond):
	}

	// A message from a different client_id must be delivered.
	otherConn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("other connect: %v", err)
	}
	defer otherConn.Close()
	js, err := otherConn.JetStream()
	if err != nil {
		t.Fatalf("other JetStream: %v", err)
	}
	body, _ := json.Marshal(map[string]any{
		"client_id": "someone-else",
		"id":        "fixed-id",
		"room":      "orders.created",
		"message":   json.RawMessage(`{"order_id":2}`),
		"start":     time.Now().UnixMilli(),
	})
	if _, err := js.Publish(m.TopicHash()+".orders.created", body); err != nil {
		t.Fatalf("external publish: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"order_id":2}` {
			t.Errorf("received payload = %s, want {\"order_id\":2}", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected handler to be invoked for non-loopback message")
	}
}
