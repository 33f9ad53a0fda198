package relayx

import "fmt"

// ErrorKind classifies a session error per the error-handling design
// (spec.md §7). Kind, not a concrete type hierarchy, is what callers switch
// on — mirroring the teacher's preference for wrapped stdlib errors
// (pkg/nats/client.go, src/server.go) over bespoke exception trees.
type ErrorKind int

const (
	// KindConfig: constructor / init / public-API argument validation failed.
	KindConfig ErrorKind = iota
	// KindNamespace: the namespace resolver returned non-success or timed out.
	KindNamespace
	// KindTransport: connect, publish, stream op, or consumer op failed below
	// the retry horizon.
	KindTransport
	// KindPermission: server reported a permissions violation on publish or
	// subscribe.
	KindPermission
	// KindAuth: server reported an authorization violation.
	KindAuth
	// KindQuota: server reported message-limit code 10077.
	KindQuota
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "CONFIG"
	case KindNamespace:
		return "NAMESPACE"
	case KindTransport:
		return "TRANSPORT"
	case KindPermission:
		return "PERMISSION"
	case KindAuth:
		return "AUTH"
	case KindQuota:
		return "QUOTA"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type every public API returns for failures
// that are a caller's responsibility (as opposed to lifecycle events, which
// are dispatched to callbacks rather than returned).
type Error struct {
	Kind  ErrorKind
	Topic string // subject parsed from a PERMISSION diagnostic; no method of this package sets it
	Err   error
}

func (e *Error) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("relayx: %s: %v (topic=%q)", e.Kind, e.Err, e.Topic)
	}
	return fmt.Sprintf("relayx: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func configErrorf(format string, args ...any) *Error {
	return newError(KindConfig, fmt.Errorf(format, args...))
}
