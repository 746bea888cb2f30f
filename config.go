package hookline

import "time"

// Config holds the configuration for a Dispatcher instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines used by the
	// background poller.
	Concurrency int

	// PollInterval is how often the poller checks for due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries fetched per poll tick.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the attempt budget stamped onto each new delivery.
	MaxAttempts int

	// UserAgent overrides the outbound User-Agent string.
	UserAgent string

	// DisableSigning omits signature headers from outbound requests.
	DisableSigning bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:    10,
		PollInterval:   5 * time.Second,
		BatchSize:      50,
		RequestTimeout: 10 * time.Second,
		MaxAttempts:    5,
	}
}
