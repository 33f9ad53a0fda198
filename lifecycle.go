package relayx

import "github.com/relayx/relayx-go/internal/session"

// Reserved lifecycle event names, exported as public constants per spec.md
// §6. These can never be registered as user topics (internal/subject
// enforces this).
const (
	CONNECTED      = "CONNECTED"
	DISCONNECTED   = "DISCONNECTED"
	RECONNECT      = "RECONNECT"
	MESSAGE_RESEND = "MESSAGE_RESEND"
)

// ReconnectPhase distinguishes the three RECONNECT sub-events (spec.md §3).
type ReconnectPhase = session.ReconnectPhase

const (
	Reconnecting = session.PhaseReconnecting
	Reconnected  = session.PhaseReconnected
	ReconnFail   = session.PhaseReconnFail
)

// ResendReport describes one offline-buffered publish replayed on reconnect
// (spec.md §3).
type ResendReport = session.ResendReport
