package session

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relayx/relayx-go/internal/envelope"
	"github.com/relayx/relayx-go/internal/subject"
)

// fetchTimeout bounds each batch pull of the ephemeral history consumer.
const fetchTimeout = 500 * time.Millisecond

// History implements §4.10: a finite, in-order replay of everything
// published on topic between start and end (defaulting to now), via an
// ephemeral JetStream consumer with deliver_policy=by_start_time.
func (m *Manager) History(topic string, start time.Time, end *time.Time) ([]envelope.Envelope, error) {
	if !subject.IsValidForPublish(topic) {
		return nil, fmt.Errorf("relayx: invalid history topic %q", topic)
	}
	if start.IsZero() {
		return nil, fmt.Errorf("relayx: history requires a start timestamp")
	}

	m.mu.Lock()
	hash := m.topicHash
	connected := m.state == StateConnected
	m.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("relayx: history requires an active connection")
	}

	wire := subject.WireTopic(hash, topic)
	windowEnd := time.Now()
	if end != nil {
		windowEnd = *end
	}

	sub, err := m.js.PullSubscribe(wire, "", nats.DeliverByStartTime(start),
		nats.ReplayInstant(), nats.AckNone())
	if err != nil {
		return nil, fmt.Errorf("relayx: creating history consumer for %s: %w", wire, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	var out []envelope.Envelope
	for {
		msgs, err := sub.Fetch(50, nats.MaxWait(fetchTimeout))
		if err != nil {
			break // timeout/EOF: no more messages in the window
		}
		if len(msgs) == 0 {
			break
		}
		for _, raw := range msgs {
			env, decErr := envelope.DecodeJSON(raw.Data)
			if decErr != nil {
				m.log.Warn().Err(decErr).Str("topic", topic).Msg("decoding history envelope failed")
				continue
			}
			ts := time.UnixMilli(env.Start)
			if ts.After(windowEnd) {
				return out, nil
			}
			out = append(out, env)
		}
	}
	return out, nil
}
