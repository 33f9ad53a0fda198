package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/relayx/relayx-go/internal/envelope"
	"github.com/relayx/relayx-go/internal/retry"
	"github.com/relayx/relayx-go/internal/subject"
)

// Publish implements C9: validate, offline-buffer-or-envelope-and-send,
// per spec.md §4.9. message is an already JSON-marshaled payload; callers
// that accept arbitrary Go values should marshal with envelope.MarshalPayload
// first. The returned error is always a caller-responsibility CONFIG
// problem (bad topic/payload) — transport-level publish failures are
// diagnosed and logged, never returned, matching spec.md §7's propagation
// policy ("connection/consumer issues ... never raise across a publish
// boundary unless pre-connection").
func (m *Manager) Publish(topic string, message json.RawMessage) (bool, error) {
	if !subject.IsValidForPublish(topic) {
		return false, fmt.Errorf("relayx: invalid publish topic %q", topic)
	}
	if len(message) == 0 {
		return false, fmt.Errorf("relayx: publish payload must not be empty")
	}

	m.mu.Lock()
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		m.bufferOffline(topic, message)
		if m.metrics != nil {
			m.metrics.PublishesTotal.WithLabelValues("buffered").Inc()
		}
		return false, nil
	}

	if err := m.ensureRegisteredForPublish(topic); err != nil {
		m.log.Warn().Err(err).Str("topic", topic).Msg("stream reconcile before publish failed")
	}

	env := envelope.New(m.cfg.ClientID, topic, message)

	var encoded []byte
	var err error
	if m.variant == VariantQueue {
		encoded, err = env.EncodeMsgPack()
	} else {
		encoded, err = env.EncodeJSON()
	}
	if err != nil {
		return false, fmt.Errorf("relayx: encoding envelope: %w", err)
	}

	m.mu.Lock()
	hash := m.topicHash
	m.mu.Unlock()
	wire := subject.WireTopic(hash, topic)

	var ack *nats.PubAck
	pubErr := retry.Do(context.Background(), m.cfg.MaxRetries, retryDelay, func() error {
		var err error
		ack, err = m.js.Publish(wire, encoded)
		return err
	})
	if pubErr != nil {
		m.log.Warn().Err(pubErr).Str("topic", topic).Msg("publish ack not received")
		if m.metrics != nil {
			m.metrics.PublishesTotal.WithLabelValues("failed").Inc()
		}
		return false, nil
	}

	if m.metrics != nil {
		m.metrics.PublishesTotal.WithLabelValues("sent").Inc()
	}
	return ack != nil, nil
}

// ensureRegisteredForPublish adds a callback-less registration row for a
// publish-only topic (one the caller never called On/Consume for) and
// reconciles the stream, per spec.md §4.9 step 3.
func (m *Manager) ensureRegisteredForPublish(topic string) error {
	m.mu.Lock()
	_, exists := m.registrations[topic]
	if !exists {
		m.registrations[topic] = &Registration{Topic: topic}
	}
	m.mu.Unlock()

	if exists {
		return nil
	}
	return m.reconcileStream()
}
