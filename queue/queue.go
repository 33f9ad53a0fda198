// Package queue implements the work-queue extension (spec.md §4.5 "queue
// variant" / C10): a durable, group-scoped pull consumer per topic, MsgPack
// envelopes, and application-driven acknowledgment instead of the core
// client's fire-and-forget push callback.
//
// Grounded the same way internal/session is: the connection-handler and
// JetStream reconcile/consumer idiom comes from
// _examples/adred-codev-ws_poc/go-server/pkg/nats/client.go and src/server.go;
// the pull/fetch-loop, detach-by-polling, and ack/nak semantics are ported
// from _examples/original_source/relayx_py/queue.py.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/relayx/relayx-go/internal/envelope"
	"github.com/relayx/relayx-go/internal/retry"
	"github.com/relayx/relayx-go/internal/rxlog"
	"github.com/relayx/relayx-go/internal/session"
	"github.com/relayx/relayx-go/internal/subject"
)

// retryDelay mirrors the core session's linear retry pace (spec.md §9:
// "linear with small delay (≤ 1s) suffices") for pull-consumer creation.
const retryDelay = 500 * time.Millisecond

// ConsumerConfig configures one Consume() registration (spec.md §4.5 queue
// variant consumer config).
type ConsumerConfig struct {
	Name          string        // durable_name
	Group         string        // deliver_group
	Topic         string        // subscription pattern, may carry '*'/'>'
	AckWait       time.Duration // default: nats.go's consumer default if zero
	Backoff       []time.Duration
	MaxDeliver    int // default: unlimited (0 means "use server default")
	MaxAckPending int
}

// Message is handed to a Consume() handler; the application drives
// acknowledgment explicitly (spec.md §4.5 "application-driven ack").
type Message struct {
	ID      string
	Topic   string // concrete subject the message arrived on
	Message []byte // raw application payload (envelope.Message)

	msg *nats.Msg
}

// Ack acknowledges successful processing.
func (m Message) Ack() error { return m.msg.Ack() }

// Nak signals failed processing; the server redelivers per ack_wait/backoff.
func (m Message) Nak() error { return m.msg.Nak() }

// Handler processes one delivered Message.
type Handler func(Message)

type registration struct {
	cfg     ConsumerConfig
	handler Handler
	sub     *nats.Subscription // pull subscription
	done    chan struct{}
}

// Queue is the client-facing work-queue handle returned by
// relayx.Client.InitQueue.
type Queue struct {
	sess *session.Manager
	log  zerolog.Logger

	mu            sync.Mutex
	registrations map[string]*registration // keyed by topic
}

// New wraps a queue-variant session.Manager (already namespace-resolved by
// session.NewQueueManager) in the public Consume/Detach/Publish surface.
func New(sess *session.Manager, baseLog zerolog.Logger) *Queue {
	q := &Queue{
		sess:          sess,
		log:           rxlog.Component(baseLog, "queue"),
		registrations: make(map[string]*registration),
	}
	sess.AddReconnectObserver(q.handleReconnect)
	sess.AddDisconnectObserver(q.handleDisconnect)
	return q
}

// Publish marshals payload (any JSON-marshalable Go value) and publishes it
// as a MsgPack-encoded envelope on the queue's stream, buffering while
// disconnected (spec.md §4.9, queue codec).
func (q *Queue) Publish(topic string, payload any) (bool, error) {
	raw, err := envelope.MarshalPayload(payload)
	if err != nil {
		return false, fmt.Errorf("relayx: marshaling queue publish payload: %w", err)
	}
	return q.sess.Publish(topic, raw)
}

// Consume registers a pull consumer for cfg.Topic (spec.md §4.5 queue
// variant, §4.8 idempotent-insert semantics: registering an already-present
// topic returns false without disturbing the existing consumer).
func (q *Queue) Consume(cfg ConsumerConfig, handler Handler) (bool, error) {
	if cfg.Name == "" || cfg.Topic == "" {
		return false, fmt.Errorf("relayx: queue consumer requires name and topic")
	}
	if !subject.IsValidForSubscription(cfg.Topic) {
		return false, fmt.Errorf("relayx: invalid queue topic %q", cfg.Topic)
	}

	q.mu.Lock()
	if _, exists := q.registrations[cfg.Topic]; exists {
		q.mu.Unlock()
		return false, nil
	}
	reg := &registration{cfg: cfg, handler: handler, done: make(chan struct{})}
	q.registrations[cfg.Topic] = reg
	q.mu.Unlock()

	if err := q.reconcileSubjects(); err != nil {
		q.log.Warn().Err(err).Str("topic", cfg.Topic).Msg("stream reconcile before consume failed")
	}
	if q.sess.State() == session.StateConnected {
		if err := q.startConsumer(reg); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Detach removes the registration and stops its fetch loop, without asking
// the server to delete the durable consumer (spec.md §4.5 detach_consumer).
func (q *Queue) Detach(topic string) (bool, error) {
	q.mu.Lock()
	reg, exists := q.registrations[topic]
	if !exists {
		q.mu.Unlock()
		return false, nil
	}
	delete(q.registrations, topic)
	q.mu.Unlock()

	close(reg.done)
	return true, nil
}

// DeleteConsumer detaches topic's registration and additionally asks the
// server to delete the durable consumer by name (spec.md §4.5
// delete_consumer).
func (q *Queue) DeleteConsumer(topic, name string) (bool, error) {
	detached, err := q.Detach(topic)
	if err != nil || !detached {
		return detached, err
	}
	streamName := q.sess.StreamName()
	if streamName == "" {
		return true, nil
	}
	if err := q.sess.JetStream().DeleteConsumer(streamName, name); err != nil {
		return true, fmt.Errorf("relayx: deleting consumer %s: %w", name, err)
	}
	return true, nil
}

func (q *Queue) reconcileSubjects() error {
	hash := q.sess.TopicHash()
	q.mu.Lock()
	subs := make([]string, 0, len(q.registrations)*2)
	for topic := range q.registrations {
		wire := subject.WireTopic(hash, topic)
		subs = append(subs, wire, subject.PresenceVariant(wire))
	}
	q.mu.Unlock()
	return q.sess.EnsureStreamSubjects(subs)
}

// startConsumer creates (or rebinds) the durable pull consumer for reg and
// spawns its fetch loop.
func (q *Queue) startConsumer(reg *registration) error {
	hash := q.sess.TopicHash()
	wire := subject.WireTopic(hash, reg.cfg.Topic)

	// A deliver group in the spec's sense falls out for free here: JetStream
	// pull consumers already load-balance Fetch calls across every puller
	// bound to the same durable name, which is exactly what a work-queue
	// group is for. cfg.Group has no separate server-side knob to carry.
	opts := []nats.SubOpt{
		nats.Durable(reg.cfg.Name),
		nats.ManualAck(),
		nats.AckExplicit(),
	}
	if reg.cfg.AckWait > 0 {
		opts = append(opts, nats.AckWait(reg.cfg.AckWait))
	}
	if len(reg.cfg.Backoff) > 0 {
		opts = append(opts, nats.Backoff(reg.cfg.Backoff...))
	}
	if reg.cfg.MaxDeliver > 0 {
		opts = append(opts, nats.MaxDeliver(reg.cfg.MaxDeliver))
	}
	if reg.cfg.MaxAckPending > 0 {
		opts = append(opts, nats.MaxAckPending(reg.cfg.MaxAckPending))
	}

	var sub *nats.Subscription
	subscribeErr := retry.Do(context.Background(), q.sess.MaxRetries(), retryDelay, func() error {
		var subErr error
		sub, subErr = q.sess.JetStream().PullSubscribe(wire, reg.cfg.Name, opts...)
		return subErr
	})
	if subscribeErr != nil {
		return fmt.Errorf("relayx: creating pull consumer %s: %w", reg.cfg.Name, subscribeErr)
	}
	reg.sub = sub

	go q.fetchLoop(reg)
	return nil
}

// fetchLoop retrieves one message at a time with a 1-second timeout (spec.md
// §4.5), decoding, stripping the hash, re-checking the pattern match as a
// defensive measure. reg.done is checked between fetches, so the loop exits
// within one fetch cycle after it is closed (detach).
func (q *Queue) fetchLoop(reg *registration) {
	for {
		select {
		case <-reg.done:
			return
		default:
		}

		msgs, err := reg.sub.Fetch(1, nats.MaxWait(1*time.Second))
		if err != nil {
			continue // timeout: loop back and re-check reg.done
		}
		for _, raw := range msgs {
			q.dispatch(reg, raw)
		}
	}
}

func (q *Queue) dispatch(reg *registration, raw *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Str("topic", reg.cfg.Topic).Msg("queue handler panicked")
			_ = raw.Nak()
		}
	}()

	env, err := envelope.DecodeMsgPack(raw.Data)
	if err != nil {
		q.log.Warn().Err(err).Msg("decoding queue envelope failed")
		_ = raw.Nak()
		return
	}

	concrete := subject.StripHash(q.sess.TopicHash(), raw.Subject)
	if !subject.Matches(reg.cfg.Topic, concrete) {
		_ = raw.Nak()
		return
	}
	if env.ClientID == q.sess.ClientID() {
		_ = raw.Ack()
		return
	}

	reg.handler(Message{ID: env.ID, Topic: concrete, Message: env.Message, msg: raw})
}

// handleReconnect rebinds every still-registered consumer and resumes its
// fetch loop after the shared transport recovers.
func (q *Queue) handleReconnect() {
	if err := q.reconcileSubjects(); err != nil {
		q.log.Warn().Err(err).Msg("post-reconnect stream reconcile failed")
	}

	q.mu.Lock()
	regs := make([]*registration, 0, len(q.registrations))
	for _, reg := range q.registrations {
		regs = append(regs, reg)
	}
	q.mu.Unlock()

	for _, reg := range regs {
		reg.done = make(chan struct{})
		if err := q.startConsumer(reg); err != nil {
			q.log.Warn().Err(err).Str("topic", reg.cfg.Topic).Msg("rebinding queue consumer failed")
		}
	}
}

// handleDisconnect stops every fetch loop; registrations themselves survive
// disconnection and are rebound on the next reconnect.
func (q *Queue) handleDisconnect() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, reg := range q.registrations {
		close(reg.done)
	}
}
