package queue

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/relayx/relayx-go/internal/session"
	"github.com/relayx/relayx-go/internal/telemetry"
)

func newDetachedQueue(t *testing.T) *Queue {
	t.Helper()
	core, err := session.NewManager(session.Config{APIKey: "k", Secret: "s", ClientID: "c"}, zerolog.Nop(), telemetry.New("q_test"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	// A queue-variant Manager normally comes from session.NewQueueManager,
	// which requires a connected core session to resolve against. These
	// tests only exercise registration bookkeeping that never touches the
	// network, so a bare core Manager (never connected) stands in.
	return New(core, zerolog.Nop())
}

func TestConsumeValidatesConfig(t *testing.T) {
	q := newDetachedQueue(t)

	if _, err := q.Consume(ConsumerConfig{Name: "", Topic: "q.a"}, func(Message) {}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := q.Consume(ConsumerConfig{Name: "w1", Topic: ""}, func(Message) {}); err == nil {
		t.Error("expected error for missing topic")
	}
	if _, err := q.Consume(ConsumerConfig{Name: "w1", Topic: "has space"}, func(Message) {}); err == nil {
		t.Error("expected error for invalid topic grammar")
	}
}

func TestConsumeIdempotentInsert(t *testing.T) {
	q := newDetachedQueue(t)
	cfg := ConsumerConfig{Name: "w1", Group: "g", Topic: "q.>"}

	first, err := q.Consume(cfg, func(Message) {})
	if err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	if !first {
		t.Error("first Consume should return true")
	}

	second, err := q.Consume(cfg, func(Message) {})
	if err != nil {
		t.Fatalf("second Consume: %v", err)
	}
	if second {
		t.Error("second Consume on the same topic should return false")
	}
}

func TestDetachUnknownTopic(t *testing.T) {
	q := newDetachedQueue(t)
	ok, err := q.Detach("never-registered")
	if err != nil || ok {
		t.Fatalf("Detach on unknown topic: ok=%v err=%v", ok, err)
	}
}

func TestDetachRemovesRegistration(t *testing.T) {
	q := newDetachedQueue(t)
	if _, err := q.Consume(ConsumerConfig{Name: "w1", Topic: "q.a"}, func(Message) {}); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	ok, err := q.Detach("q.a")
	if err != nil || !ok {
		t.Fatalf("Detach: ok=%v err=%v", ok, err)
	}

	q.mu.Lock()
	_, stillPresent := q.registrations["q.a"]
	q.mu.Unlock()
	if stillPresent {
		t.Error("registration should be removed after Detach")
	}
}
