package hookline

import (
	"log/slog"
	"time"

	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/retry"
	"github.com/hookline/hookline/schema"
	"github.com/hookline/hookline/store"
)

// Dispatcher is the root webhook delivery engine: it accepts published
// events, fans them out to subscribed endpoints, and drives the delivery
// lifecycle through its engine and background poller.
type Dispatcher struct {
	config      Config
	store       store.Store
	strategy    retry.Strategy
	schemas     *schema.Registry
	endpointSvc *endpoint.Service
	attemptSvc  *attemptlog.Service
	engine      *delivery.Engine
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      *slog.Logger
}

// Option configures a Dispatcher instance.
type Option func(*Dispatcher) error

// New creates a new Dispatcher with the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.store == nil {
		return nil, ErrNoStore
	}
	if d.strategy == nil {
		// The default strategy follows the configured budget so that
		// WithMaxAttempts alone raises both the per-delivery budget and
		// the strategy's own cutoff.
		strategy := retry.NewExponential()
		strategy.MaxAttempts = d.config.MaxAttempts
		d.strategy = strategy
	}
	d.wireServices()
	return d, nil
}

// WithStore sets the persistence backend for the Dispatcher.
func WithStore(s store.Store) Option {
	return func(d *Dispatcher) error {
		d.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = logger
		return nil
	}
}

// WithRetryStrategy selects the backoff policy applied to failed
// deliveries. Defaults to exponential backoff with jitter.
func WithRetryStrategy(s retry.Strategy) Option {
	return func(d *Dispatcher) error {
		d.strategy = s
		return nil
	}
}

// WithConcurrency sets the number of poller worker goroutines.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		d.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the poller checks for due deliveries.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.PollInterval = interval
		return nil
	}
}

// WithBatchSize sets the maximum number of deliveries fetched per poll tick.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) error {
		d.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.RequestTimeout = timeout
		return nil
	}
}

// WithMaxAttempts sets the attempt budget stamped onto each new delivery.
// The default retry strategy adopts the same budget; a strategy supplied
// via WithRetryStrategy keeps its own MaxAttempts, and the effective limit
// is the lower of the two.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) error {
		d.config.MaxAttempts = n
		return nil
	}
}

// WithUserAgent overrides the outbound User-Agent string.
func WithUserAgent(ua string) Option {
	return func(d *Dispatcher) error {
		d.config.UserAgent = ua
		return nil
	}
}

// WithoutSigning omits signature and timestamp headers from outbound
// requests.
func WithoutSigning() Option {
	return func(d *Dispatcher) error {
		d.config.DisableSigning = true
		return nil
	}
}

// WithMetrics enables metric recording on the given instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) error {
		d.metrics = m
		return nil
	}
}

// WithTracer enables span creation around delivery attempts.
func WithTracer(t *observability.Tracer) Option {
	return func(d *Dispatcher) error {
		d.tracer = t
		return nil
	}
}
