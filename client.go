package relayx

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relayx/relayx-go/internal/envelope"
	"github.com/relayx/relayx-go/internal/rxlog"
	"github.com/relayx/relayx-go/internal/session"
	"github.com/relayx/relayx-go/internal/telemetry"
	"github.com/relayx/relayx-go/queue"
)

// Client is one realtime session against a configured credential pair. All
// exported methods are safe for concurrent use; the CONNECTED callback runs
// on the goroutine that called Connect, and the other lifecycle callbacks are
// invoked on the goroutine the underlying transport library delivers
// connection events on.
type Client struct {
	sess *session.Manager
	log  zerolog.Logger
	opts Opts
}

// NewClient validates cfg and constructs a Client. It does not connect; call
// Connect to establish the session.
func NewClient(cfg Config, opts Opts) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, configErrorf("api_key must not be empty")
	}
	if cfg.Secret == "" {
		return nil, configErrorf("secret must not be empty")
	}
	opts = opts.withDefaults()

	log := rxlog.New(rxlog.Config{Debug: opts.Debug, Format: rxlog.FormatJSON})
	metrics := telemetry.New("relayx")

	sessCfg := session.Config{
		APIKey:     cfg.APIKey,
		Secret:     cfg.Secret,
		Staging:    opts.Staging,
		Debug:      opts.Debug,
		MaxRetries: opts.MaxRetries,
		ClientID:   uuid.NewString(),
	}
	sess, err := session.NewManager(sessCfg, log, metrics)
	if err != nil {
		return nil, newError(KindConfig, err)
	}

	return &Client{sess: sess, log: log, opts: opts}, nil
}

// Connect establishes the transport, resolves the namespace, and emits
// CONNECTED once the initial stream/consumer reconciliation completes.
func (c *Client) Connect() error {
	if err := c.sess.Connect(); err != nil {
		return classifyConnectErr(err)
	}
	return nil
}

// Close marks the disconnect as intentional and tears down the transport
// without triggering a reconnect attempt (spec.md §5 Cancellation).
func (c *Client) Close() error {
	return c.sess.Close()
}

// On registers fn against topic. Returns true on first registration, false
// if topic was already registered (the existing callback is kept).
func (c *Client) On(topic string, fn func(payload []byte)) (bool, error) {
	ok, err := c.sess.On(topic, session.Handler(fn))
	if err != nil {
		return ok, newError(KindConfig, err)
	}
	return ok, nil
}

// Off removes topic's registration and its live consumer, if any.
func (c *Client) Off(topic string) (bool, error) {
	ok, err := c.sess.Off(topic)
	if err != nil {
		return ok, newError(KindTransport, err)
	}
	return ok, nil
}

// Publish sends payload (any JSON-marshalable Go value) on topic. Returns
// false without error while disconnected (the publish is buffered for
// replay); returns a CONFIG error for an invalid topic or nil payload.
func (c *Client) Publish(topic string, payload any) (bool, error) {
	if payload == nil {
		return false, configErrorf("publish payload must not be nil")
	}
	raw, err := envelope.MarshalPayload(payload)
	if err != nil {
		return false, configErrorf("marshaling publish payload: %v", err)
	}
	sent, err := c.sess.Publish(topic, raw)
	if err != nil {
		return false, newError(KindConfig, err)
	}
	return sent, nil
}

// History returns every envelope observed on topic between start and end
// (end defaults to now when nil).
func (c *Client) History(topic string, start time.Time, end *time.Time) ([]envelope.Envelope, error) {
	out, err := c.sess.History(topic, start, end)
	if err != nil {
		return nil, newError(KindConfig, err)
	}
	return out, nil
}

// InitQueue resolves the work-queue namespace for queueID and returns a
// Queue bound to this Client's shared transport (spec.md §4.3).
func (c *Client) InitQueue(queueID string) (*queue.Queue, error) {
	qSess, err := session.NewQueueManager(c.sess, queueID, c.log, telemetry.New("relayx_queue"))
	if err != nil {
		return nil, classifyQueueInitErr(err)
	}
	return queue.New(qSess, c.log), nil
}

// OnConnected registers the CONNECTED lifecycle callback.
func (c *Client) OnConnected(fn func()) {
	c.mutateCallbacks(func(cb *session.Callbacks) { cb.OnConnected = fn })
}

// OnDisconnected registers the DISCONNECTED lifecycle callback.
func (c *Client) OnDisconnected(fn func()) {
	c.mutateCallbacks(func(cb *session.Callbacks) { cb.OnDisconnected = fn })
}

// OnReconnect registers the RECONNECT lifecycle callback, invoked with the
// specific phase (RECONNECTING, RECONNECTED, RECONN_FAIL).
func (c *Client) OnReconnect(fn func(phase ReconnectPhase)) {
	c.mutateCallbacks(func(cb *session.Callbacks) { cb.OnReconnect = fn })
}

// OnMessageResend registers the MESSAGE_RESEND lifecycle callback, invoked
// once per reconnect with every offline-buffered publish's outcome. It is
// not invoked for a reconnect that had no buffered publishes to replay.
func (c *Client) OnMessageResend(fn func([]ResendReport)) {
	c.mutateCallbacks(func(cb *session.Callbacks) { cb.OnMessageResend = fn })
}

func (c *Client) mutateCallbacks(mutate func(*session.Callbacks)) {
	c.sess.UpdateCallbacks(mutate)
}

func classifyConnectErr(err error) error {
	var nsErr session.NamespaceError
	if errors.As(err, &nsErr) {
		return newError(KindNamespace, err)
	}
	return newError(KindTransport, err)
}

func classifyQueueInitErr(err error) error {
	var notFound session.QueueNotFoundError
	if errors.As(err, &notFound) {
		return newError(KindNamespace, err)
	}
	var nsErr session.NamespaceError
	if errors.As(err, &nsErr) {
		return newError(KindNamespace, err)
	}
	return newError(KindTransport, err)
}
