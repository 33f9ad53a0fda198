// Package session implements the session and subscription manager: the
// heart of the SDK (spec.md §1-§5, components C3-C9). It negotiates a
// per-tenant namespace, lazily materializes streams/subjects, reconciles
// push consumers against the registration table, buffers offline
// publishes, and dispatches lifecycle events.
//
// Grounded in _examples/adred-codev-ws_poc/go-server/pkg/nats/client.go for
// the connection-handler wiring shape (ConnectHandler/DisconnectErrHandler/
// ReconnectHandler/ErrorHandler) and _examples/adred-codev-ws_poc/src/server.go
// for the JetStream stream/consumer lifecycle (StreamInfo/AddStream/
// UpdateStream, Subscribe with Durable/ManualAck/AckWait). Algorithmic
// semantics (namespace resolution payloads, offline replay, stream naming)
// are ported from _examples/original_source/relayx_py/realtime.py.
package session

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/relayx/relayx-go/internal/diagnostics"
	"github.com/relayx/relayx-go/internal/telemetry"
)

// State is the connection state of a Session (spec.md §3 Data Model).
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReconnectPhase distinguishes the three RECONNECT sub-events.
type ReconnectPhase int

const (
	PhaseReconnecting ReconnectPhase = iota
	PhaseReconnected
	PhaseReconnFail
)

func (p ReconnectPhase) String() string {
	switch p {
	case PhaseReconnecting:
		return "RECONNECTING"
	case PhaseReconnected:
		return "RECONNECTED"
	case PhaseReconnFail:
		return "RECONN_FAIL"
	default:
		return "UNKNOWN"
	}
}

// Handler is a user message callback: it receives the application payload
// as raw JSON bytes (the envelope's Message field), never the envelope itself.
type Handler func(payload []byte)

// Registration is a row of the Topic Registration Table (spec.md §3).
type Registration struct {
	Topic    string
	Callback Handler
	Consumer *nats.Subscription
}

// ResendReport describes the outcome of replaying one offline-buffered
// publish (spec.md §3 OfflineEntry / §4.6).
type ResendReport struct {
	Topic   string
	Message []byte
	Resent  bool
}

// offlineEntry is a buffered publish awaiting replay.
type offlineEntry struct {
	topic   string
	message []byte
}

// Variant distinguishes the core (push, JSON) session from the queue
// (pull, MsgPack) session — they share almost everything except the wire
// codec, the stream-naming scheme, and the consumer kind.
type Variant int

const (
	VariantCore Variant = iota
	VariantQueue
)

// Config is the subset of the public Config/Opts the session needs.
type Config struct {
	APIKey     string
	Secret     string
	Staging    bool
	Debug      bool
	MaxRetries int
	ClientID   string // generated once per Client, shared with any Queue on it
}

// Callbacks are the lifecycle event sinks (spec.md §4.7). Each is optional;
// a nil callback is simply never invoked. OnConnected runs on the goroutine
// that called Connect. The others are called only from the single nats.go
// callback goroutine that observes each transition, never concurrently,
// which is what gives them at-most-once delivery per event occurrence.
type Callbacks struct {
	OnConnected     func()
	OnDisconnected  func()
	OnReconnect     func(phase ReconnectPhase)
	OnMessageResend func([]ResendReport)
}

// Manager is the session and subscription manager for one variant (core or
// queue) of one credential pair.
type Manager struct {
	cfg     Config
	variant Variant
	log     zerolog.Logger
	diag    *diagnostics.Reporter
	metrics *telemetry.Metrics

	nc *nats.Conn
	js nats.JetStreamContext

	namespace string
	topicHash string
	streamName string

	mu            sync.Mutex
	state         State
	manualClose   bool
	registrations map[string]*Registration
	offlineBuffer []offlineEntry

	callbacks Callbacks

	// observers let a Queue sharing this connection piggyback on the core
	// session's reconnect/disconnect handling without nats.go allowing a
	// second set of connection handlers to be registered.
	reconnectObservers  []func()
	disconnectObservers []func()

	credsPath string

	// core is set only for a queue-variant Manager: the session it shares a
	// transport with, consulted to tell a manual close from a transport drop.
	core *Manager

	// testURLs overrides the staging/production URL lists. Only ever set
	// by _test.go files in this package, to point Connect at an in-process
	// nats-server instead of the real fleet.
	testURLs []string
}

// Namespace returns the resolved tenant namespace (empty until Connect succeeds).
func (m *Manager) Namespace() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.namespace
}

// TopicHash returns the opaque wire-subject prefix.
func (m *Manager) TopicHash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topicHash
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ClientID returns this session's loopback-suppression identifier.
func (m *Manager) ClientID() string { return m.cfg.ClientID }

// Log returns the component logger this Manager was built with.
func (m *Manager) Log() zerolog.Logger { return m.log }

// MaxRetries returns the bounded-retry attempt ceiling for stream/consumer
// creation (spec.md §9), shared with a Queue riding this session's transport.
func (m *Manager) MaxRetries() int { return m.cfg.MaxRetries }

// StreamName returns the resolved stream name ("" until Connect succeeds).
func (m *Manager) StreamName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamName
}

// Conn exposes the underlying *nats.Conn for a Queue sharing this session's
// transport.
func (m *Manager) Conn() *nats.Conn { return m.nc }

// JetStream exposes the underlying JetStream context for a Queue sharing
// this session's transport.
func (m *Manager) JetStream() nats.JetStreamContext { return m.js }

// AddReconnectObserver registers a func invoked after the core session has
// finished handling a successful reconnect (stream reconciled, consumers
// rebuilt, offline buffer drained).
func (m *Manager) AddReconnectObserver(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectObservers = append(m.reconnectObservers, fn)
}

// AddDisconnectObserver registers a func invoked after the core session has
// finished handling a disconnect.
func (m *Manager) AddDisconnectObserver(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectObservers = append(m.disconnectObservers, fn)
}

const requestTimeout = 5 * time.Second
