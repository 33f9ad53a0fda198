package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/relayx/relayx-go/internal/retry"
	"github.com/relayx/relayx-go/internal/subject"
)

// retryDelay is the linear retry pace for stream/consumer creation
// (spec.md §9: "linear with small delay (≤ 1s) suffices").
const retryDelay = 500 * time.Millisecond

// reconcileStream ensures the session's stream exists and carries the union
// of every registered topic's wire subject (plus its presence variant),
// per spec.md §4.4. Safe to call on every `on` and on reconnect.
func (m *Manager) reconcileStream() error {
	m.mu.Lock()
	wanted := m.wireSubjectsLocked()
	m.mu.Unlock()
	return m.EnsureStreamSubjects(wanted)
}

// EnsureStreamSubjects reconciles the session's stream against an explicit
// subject list, rather than the Manager's own registration table. A
// queue.Queue riding a queue-variant Manager keeps its own registration
// bookkeeping (consumer config, not just a callback) and calls this
// directly instead of going through reconcileStream/wireSubjectsLocked.
func (m *Manager) EnsureStreamSubjects(wanted []string) error {
	m.mu.Lock()
	name := m.streamName
	hash := m.topicHash
	m.mu.Unlock()

	if name == "" {
		return nil // not yet connected; reconciliation happens once namespace resolves
	}

	info, err := m.js.StreamInfo(name)
	if err != nil {
		cfg := &nats.StreamConfig{
			Name:     name,
			Subjects: wanted,
		}
		createErr := retry.Do(context.Background(), m.cfg.MaxRetries, retryDelay, func() error {
			_, err := m.js.AddStream(cfg)
			return err
		})
		if createErr != nil {
			return fmt.Errorf("relayx: creating stream %s: %w", name, createErr)
		}
		m.log.Debug().Str("stream", name).Strs("subjects", wanted).Msg("stream created")
		return nil
	}

	merged := unionSubjects(info.Config.Subjects, wanted)
	if sameSet(merged, info.Config.Subjects) {
		return nil
	}
	cfg := info.Config
	cfg.Subjects = merged
	updateErr := retry.Do(context.Background(), m.cfg.MaxRetries, retryDelay, func() error {
		_, err := m.js.UpdateStream(&cfg)
		return err
	})
	if updateErr != nil {
		return fmt.Errorf("relayx: updating stream %s: %w", name, updateErr)
	}
	m.log.Debug().Str("stream", name).Str("hash", hash).Strs("subjects", merged).Msg("stream updated")
	return nil
}

// wireSubjectsLocked must be called with m.mu held; it builds the full
// subject set (wire topic + presence variant) for every current registration.
func (m *Manager) wireSubjectsLocked() []string {
	subs := make([]string, 0, len(m.registrations)*2)
	for topic := range m.registrations {
		wire := subject.WireTopic(m.topicHash, topic)
		subs = append(subs, wire, subject.PresenceVariant(wire))
	}
	return subs
}

func unionSubjects(existing, additional []string) []string {
	seen := make(map[string]bool, len(existing)+len(additional))
	out := make([]string, 0, len(existing)+len(additional))
	for _, s := range existing {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range additional {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}
