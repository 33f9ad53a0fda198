package relayx

// Config holds the required credential pair (spec.md §6 Configuration).
type Config struct {
	APIKey string
	Secret string
}

// Opts controls optional connection behavior, passed to NewClient.
type Opts struct {
	// Staging selects the staging transport endpoints instead of production.
	Staging bool
	// Debug enables verbose logging (internal/rxlog debug level).
	Debug bool
	// MaxRetries bounds internal republish retries (and the attempts made to
	// create a stream or consumer). Zero means "use the
	// default" (5 — see DESIGN.md's resolution of the source's
	// uninitialized __max_publish_retries bug, spec.md §9).
	MaxRetries int
}

const defaultMaxRetries = 5

func (o Opts) withDefaults() Opts {
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	return o
}
