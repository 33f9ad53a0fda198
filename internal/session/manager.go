package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/relayx/relayx-go/internal/creds"
	"github.com/relayx/relayx-go/internal/diagnostics"
	"github.com/relayx/relayx-go/internal/rxlog"
	"github.com/relayx/relayx-go/internal/telemetry"
)

var stagingURLs = []string{
	"nats://0.0.0.0:4221", "nats://0.0.0.0:4222", "nats://0.0.0.0:4223",
	"nats://0.0.0.0:4224", "nats://0.0.0.0:4225", "nats://0.0.0.0:4226",
}

var productionURLs = []string{
	"nats://api.relay-x.io:4221", "nats://api.relay-x.io:4222", "nats://api.relay-x.io:4223",
	"nats://api.relay-x.io:4224", "nats://api.relay-x.io:4225", "nats://api.relay-x.io:4226",
}

// namespaceReply is the decoded administrative-subject response shared by
// both the core and queue namespace requests.
type namespaceReply struct {
	Status string `json:"status"`
	Data   struct {
		Namespace string `json:"namespace"`
		Hash      string `json:"hash"`
	} `json:"data"`
}

// NewManager constructs a session.Manager for the core variant. A fresh
// metrics registry and component logger are built per instance so multiple
// Clients in one process never collide (spec.md §9).
func NewManager(cfg Config, log zerolog.Logger, metrics *telemetry.Metrics) (*Manager, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key", errEmptyConfigField)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: secret", errEmptyConfigField)
	}

	m := &Manager{
		cfg:           cfg,
		variant:       VariantCore,
		log:           rxlog.Component(log, "session"),
		diag:          diagnostics.New(log),
		metrics:       metrics,
		state:         StateDisconnected,
		registrations: make(map[string]*Registration),
	}
	return m, nil
}

// NewQueueManager constructs a session.Manager for the queue variant, reusing
// an already-connected core Manager's transport (spec.md §4.3: the queue
// variant resolves its own namespace/hash but rides the same connection).
func NewQueueManager(core *Manager, queueID string, log zerolog.Logger, metrics *telemetry.Metrics) (*Manager, error) {
	if core.nc == nil {
		return nil, fmt.Errorf("relayx: InitQueue called before Connect")
	}
	m := &Manager{
		cfg:           core.cfg,
		variant:       VariantQueue,
		log:           rxlog.Component(log, "queue"),
		diag:          diagnostics.New(log),
		metrics:       metrics,
		state:         StateDisconnected,
		registrations: make(map[string]*Registration),
		nc:            core.nc,
		js:            core.js,
		core:          core,
	}

	reply, err := m.request("accounts.user.get_queue_namespace", map[string]string{
		"api_key":  core.cfg.APIKey,
		"queue_id": queueID,
	})
	if err != nil {
		return nil, err
	}
	if reply.Status == "QUEUE_NOT_FOUND" {
		return nil, QueueNotFoundError{queueID: queueID}
	}
	if reply.Data.Namespace == "" {
		return nil, NamespaceError{status: reply.Status}
	}

	m.namespace = reply.Data.Namespace
	m.topicHash = reply.Data.Hash
	m.streamName = "Q_" + m.namespace
	m.state = StateConnected

	core.AddReconnectObserver(func() { m.handleCoreReconnected() })
	core.AddDisconnectObserver(func() { m.handleCoreDisconnected() })

	return m, nil
}

// errEmptyConfigField / QueueNotFoundError / NamespaceError are sentinel
// error values the root package maps onto relayx.Error{Kind: ...}.
var errEmptyConfigField = fmt.Errorf("relayx: config field must not be empty")

type QueueNotFoundError struct{ queueID string }

func (e QueueNotFoundError) Error() string { return fmt.Sprintf("queue %q not found", e.queueID) }

type NamespaceError struct{ status string }

func (e NamespaceError) Error() string {
	return fmt.Sprintf("namespace resolution failed: status=%q", e.status)
}

// SetCallbacks installs the lifecycle callback sinks (spec.md §4.7),
// replacing whatever was previously set.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = cb
}

// UpdateCallbacks mutates the currently-installed Callbacks under the
// session lock, so registering OnConnected and OnReconnect in separate
// calls doesn't clobber each other.
func (m *Manager) UpdateCallbacks(mutate func(*Callbacks)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mutate(&m.callbacks)
}

// Connect establishes the transport, resolves the namespace, reconciles the
// stream, and rebuilds consumers for any registrations made before connect
// (spec.md §4.7 "first connect" row).
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	credsPath, err := m.writeCreds()
	if err != nil {
		return err
	}
	m.credsPath = credsPath

	urls := productionURLs
	if m.cfg.Staging {
		urls = stagingURLs
	}
	if m.testURLs != nil {
		urls = m.testURLs // test seam only; never set outside _test.go files
	}

	opts := []nats.Option{
		nats.Name("relayx-go"),
		nats.NoEcho(),
		nats.MaxReconnects(1200),
		nats.ReconnectWait(1 * time.Second),
		nats.Token(m.cfg.APIKey),
		nats.UserCredentials(credsPath),
		nats.DisconnectErrHandler(m.onDisconnect),
		nats.ReconnectHandler(m.onReconnect),
		nats.ErrorHandler(m.onError),
		nats.ClosedHandler(m.onClosed),
	}

	nc, err := nats.Connect(strings.Join(urls, ","), opts...)
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("relayx: transport connect: %w", err)
	}
	m.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("relayx: acquiring JetStream context: %w", err)
	}
	m.js = js

	reply, err := m.request("accounts.user.get_namespace", map[string]string{"api_key": m.cfg.APIKey})
	if err != nil {
		return err
	}
	if reply.Status != "NAMESPACE_RETRIEVE_SUCCESS" || reply.Data.Namespace == "" {
		return NamespaceError{status: reply.Status}
	}

	m.mu.Lock()
	m.namespace = reply.Data.Namespace
	m.topicHash = m.namespace // core variant has no separate hash field
	m.streamName = m.namespace + "_stream"
	m.mu.Unlock()

	if err := m.reconcileStream(); err != nil {
		m.log.Warn().Err(err).Msg("initial stream reconcile failed")
	}
	m.recreateAllConsumers()

	m.setState(StateConnected)
	m.log.Info().Str("namespace", m.namespace).Msg("connected")

	m.mu.Lock()
	cb := m.callbacks.OnConnected
	m.mu.Unlock()
	if cb != nil {
		safeCall(m.log, func() { cb() })
	}
	return nil
}

// Close marks the disconnect as manual (suppressing the reconnect event) and
// tears down the transport.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.manualClose = true
	m.state = StateClosed
	nc := m.nc
	credsPath := m.credsPath
	m.mu.Unlock()

	if nc != nil {
		nc.Close()
	}
	if credsPath != "" {
		_ = os.Remove(credsPath)
	}
	return nil
}

func (m *Manager) writeCreds() (string, error) {
	f, err := os.CreateTemp("", "relayx-*.creds")
	if err != nil {
		return "", fmt.Errorf("relayx: allocating creds file: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	if _, err := creds.WriteFile(path, m.cfg.APIKey, m.cfg.Secret); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// request performs a 5-second request/reply on an administrative subject
// (spec.md §4.3) and decodes the standard {status, data} envelope.
func (m *Manager) request(subj string, payload any) (namespaceReply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return namespaceReply{}, fmt.Errorf("relayx: encoding request for %s: %w", subj, err)
	}
	msg, err := m.nc.Request(subj, body, requestTimeout)
	if err != nil {
		return namespaceReply{}, NamespaceError{status: err.Error()}
	}
	var reply namespaceReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return namespaceReply{}, fmt.Errorf("relayx: decoding reply from %s: %w", subj, err)
	}
	return reply, nil
}

func (m *Manager) onDisconnect(_ *nats.Conn, _ error) {
	m.mu.Lock()
	for _, reg := range m.registrations {
		reg.Consumer = nil
	}
	manual := m.manualClose
	m.state = StateDisconnected
	cb := m.callbacks.OnDisconnected
	reconnectCb := m.callbacks.OnReconnect
	observers := append([]func(){}, m.disconnectObservers...)
	m.mu.Unlock()

	if cb != nil {
		safeCall(m.log, func() { cb() })
	}
	if !manual && reconnectCb != nil {
		safeCall(m.log, func() { reconnectCb(PhaseReconnecting) })
	}
	for _, obs := range observers {
		obs()
	}
}

func (m *Manager) onReconnect(_ *nats.Conn) {
	m.setState(StateConnected)

	if err := m.reconcileStream(); err != nil {
		m.log.Warn().Err(err).Msg("reconnect stream reconcile failed")
	}
	m.recreateAllConsumers()
	reports := m.drainOfflineBuffer()

	m.mu.Lock()
	reconnectCb := m.callbacks.OnReconnect
	resendCb := m.callbacks.OnMessageResend
	observers := append([]func(){}, m.reconnectObservers...)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ReconnectsTotal.Inc()
	}
	if reconnectCb != nil {
		safeCall(m.log, func() { reconnectCb(PhaseReconnected) })
	}
	if len(reports) > 0 && resendCb != nil {
		safeCall(m.log, func() { resendCb(reports) })
	}
	for _, obs := range observers {
		obs()
	}
}

func (m *Manager) onError(_ *nats.Conn, _ *nats.Subscription, err error) {
	if err == nil {
		return
	}
	if topic, recognized := m.diag.Report(err.Error()); recognized {
		if m.metrics != nil {
			kind := "permission"
			if topic == "" {
				kind = "auth"
			}
			m.metrics.DiagnosticsTotal.WithLabelValues(kind).Inc()
		}
		return
	}
	if strings.Contains(err.Error(), "10077") {
		m.diag.ReportQuota()
		if m.metrics != nil {
			m.metrics.DiagnosticsTotal.WithLabelValues("quota").Inc()
		}
	}
}

func (m *Manager) isManualClose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manualClose
}

// handleCoreReconnected is invoked (via the core Manager's reconnect
// observer list) when the shared transport comes back up. It runs this
// queue-variant Manager's own reconcile/recreate/drain sequence and fires
// its own lifecycle callbacks, independent of the core session's.
func (m *Manager) handleCoreReconnected() {
	m.setState(StateConnected)

	if err := m.reconcileStream(); err != nil {
		m.log.Warn().Err(err).Msg("reconnect stream reconcile failed")
	}
	m.recreateAllConsumers()
	reports := m.drainOfflineBuffer()

	m.mu.Lock()
	reconnectCb := m.callbacks.OnReconnect
	resendCb := m.callbacks.OnMessageResend
	observers := append([]func(){}, m.reconnectObservers...)
	m.mu.Unlock()

	if reconnectCb != nil {
		safeCall(m.log, func() { reconnectCb(PhaseReconnected) })
	}
	if len(reports) > 0 && resendCb != nil {
		safeCall(m.log, func() { resendCb(reports) })
	}
	for _, obs := range observers {
		obs()
	}
}

// handleCoreDisconnected mirrors onDisconnect for a queue-variant Manager
// riding the core session's transport.
func (m *Manager) handleCoreDisconnected() {
	m.mu.Lock()
	for _, reg := range m.registrations {
		reg.Consumer = nil
	}
	m.state = StateDisconnected
	cb := m.callbacks.OnDisconnected
	reconnectCb := m.callbacks.OnReconnect
	observers := append([]func(){}, m.disconnectObservers...)
	m.mu.Unlock()

	if cb != nil {
		safeCall(m.log, func() { cb() })
	}
	if m.core != nil && !m.core.isManualClose() && reconnectCb != nil {
		safeCall(m.log, func() { reconnectCb(PhaseReconnecting) })
	}
	for _, obs := range observers {
		obs()
	}
}

func (m *Manager) onClosed(_ *nats.Conn) {
	m.mu.Lock()
	manual := m.manualClose
	m.mu.Unlock()
	if manual {
		return
	}

	m.clearOfflineBuffer()
	m.setState(StateClosed)

	m.mu.Lock()
	reconnectCb := m.callbacks.OnReconnect
	m.mu.Unlock()
	if reconnectCb != nil {
		safeCall(m.log, func() { reconnectCb(PhaseReconnFail) })
	}
}

// safeCall isolates a user callback per spec.md §4.7: exceptions (panics, in
// Go) are caught, logged, and never propagate into the transport machinery.
func safeCall(log zerolog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("user callback panicked")
		}
	}()
	fn()
}
