package session

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/relayx/relayx-go/internal/envelope"
	"github.com/relayx/relayx-go/internal/retry"
	"github.com/relayx/relayx-go/internal/subject"
)

// On registers a topic callback (spec.md §4.8 Topic Registration Table).
// Returns true on first registration, false if topic is already present
// (idempotent-insert; the existing callback is kept). While connected, a
// newly-registered topic is reconciled into the stream and given a live
// push consumer immediately; failures of either step are logged, not
// returned.
func (m *Manager) On(topic string, cb Handler) (bool, error) {
	if !subject.IsValidForSubscription(topic) {
		return false, fmt.Errorf("relayx: invalid subscription topic %q", topic)
	}

	m.mu.Lock()
	if _, exists := m.registrations[topic]; exists {
		m.mu.Unlock()
		return false, nil
	}
	m.registrations[topic] = &Registration{Topic: topic, Callback: cb}
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		return true, nil
	}
	if err := m.reconcileStream(); err != nil {
		m.log.Warn().Err(err).Str("topic", topic).Msg("stream reconcile on registration failed")
	}
	if err := m.createPushConsumer(topic); err != nil {
		m.log.Warn().Err(err).Str("topic", topic).Msg("creating consumer on registration failed")
	}
	return true, nil
}

// Off removes a registration and tears down its consumer, if any. Returns
// false if topic was not registered.
func (m *Manager) Off(topic string) (bool, error) {
	m.mu.Lock()
	reg, exists := m.registrations[topic]
	if !exists {
		m.mu.Unlock()
		return false, nil
	}
	delete(m.registrations, topic)
	m.mu.Unlock()

	if reg.Consumer != nil {
		if err := reg.Consumer.Unsubscribe(); err != nil {
			return true, fmt.Errorf("relayx: unsubscribing %s: %w", topic, err)
		}
	}
	return true, nil
}

// IsRegistered reports whether topic currently has a row in the table.
func (m *Manager) IsRegistered(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.registrations[topic]
	return ok
}

// recreateAllConsumers rebuilds a live consumer for every registration
// lacking one — called after first connect and after every reconnect.
// A no-op for a queue-variant Manager whose registration table is managed
// by the queue package instead (see queue.Queue).
func (m *Manager) recreateAllConsumers() {
	if m.variant != VariantCore {
		return
	}
	m.mu.Lock()
	topics := make([]string, 0, len(m.registrations))
	for topic, reg := range m.registrations {
		if reg.Consumer == nil {
			topics = append(topics, topic)
		}
	}
	m.mu.Unlock()

	for _, topic := range topics {
		if err := m.createPushConsumer(topic); err != nil {
			m.log.Warn().Err(err).Str("topic", topic).Msg("recreating consumer failed")
		}
	}
}

// createPushConsumer materializes the push consumer for one registration
// (spec.md §4.5 core variant): new durable consumer, explicit ack, instant
// replay, filtered on the wire topic and its presence variant.
func (m *Manager) createPushConsumer(topic string) error {
	m.mu.Lock()
	hash := m.topicHash
	reg, exists := m.registrations[topic]
	m.mu.Unlock()
	if !exists {
		return nil // off() raced us; nothing to do
	}

	wire := subject.WireTopic(hash, topic)
	presence := subject.PresenceVariant(wire)

	var sub *nats.Subscription
	subscribeErr := retry.Do(context.Background(), m.cfg.MaxRetries, retryDelay, func() error {
		var subErr error
		sub, subErr = m.js.Subscribe(wire, m.pushHandler(topic), append(
			[]nats.SubOpt{
				nats.Durable(sanitizeDurableName(wire)),
				nats.ManualAck(),
				nats.DeliverNew(),
				nats.ReplayInstant(),
			},
			consumerFilterOpt(wire, presence)...,
		)...)
		return subErr
	})
	if subscribeErr != nil {
		return fmt.Errorf("relayx: subscribing %s: %w", wire, subscribeErr)
	}

	m.mu.Lock()
	if reg, exists = m.registrations[topic]; exists {
		reg.Consumer = sub
	} else {
		_ = sub.Unsubscribe() // off() raced the subscribe call; discard
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ConsumersActive.Inc()
	}
	return nil
}

// consumerFilterOpt carries both the wire topic and its presence companion
// into the consumer's filter subjects, per spec.md §4.5's
// filter_subject = [WireTopic(topic), WireTopic(topic)+"_presence"].
func consumerFilterOpt(subjects ...string) []nats.SubOpt {
	return []nats.SubOpt{nats.ConsumerFilterSubjects(subjects...)}
}

// pushHandler builds the per-topic message callback: ack first (so a slow
// or failing user handler never blocks redelivery), then loopback-suppress,
// then dispatch (spec.md §4.5 / invariant "ack precedes callback").
func (m *Manager) pushHandler(topic string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		_ = msg.Ack()

		env, err := envelope.DecodeJSON(msg.Data)
		if err != nil {
			m.log.Warn().Err(err).Str("topic", topic).Msg("decoding envelope failed")
			return
		}

		m.mu.Lock()
		clientID := m.cfg.ClientID
		reg, exists := m.registrations[topic]
		m.mu.Unlock()
		if !exists || reg.Callback == nil {
			return
		}

		if env.ClientID == clientID {
			if m.metrics != nil {
				m.metrics.LoopbackSuppressed.Inc()
			}
			return
		}

		if m.metrics != nil {
			m.metrics.MessagesReceivedTotal.WithLabelValues(topic).Inc()
		}
		safeCall(m.log, func() { reg.Callback(env.Message) })
	}
}

// sanitizeDurableName replaces characters JetStream durable names forbid
// ('.', '*', '>') with '_' — wire topics are dot-delimited so this matters.
func sanitizeDurableName(wire string) string {
	out := make([]rune, 0, len(wire))
	for _, r := range wire {
		switch r {
		case '.', '*', '>':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
