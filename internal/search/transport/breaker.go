package transport

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/ai-search-dispatcher/internal/pkg/errors"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

// Default circuit breaker settings
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker
type BreakerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// MaxFailures is the number of consecutive failures before the circuit opens
	MaxFailures uint32 `mapstructure:"max_failures" yaml:"max_failures"`

	// Timeout is how long the circuit stays open before a half-open probe
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Interval clears failure counts while closed; 0 never clears
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// DefaultBreakerConfig returns an enabled breaker with the default thresholds
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:     true,
		MaxFailures: defaultBreakerMaxFailures,
		Timeout:     defaultBreakerTimeout,
		Interval:    defaultBreakerInterval,
	}
}

// BreakerTransport fails fast once the wrapped transport keeps failing.
// It never retries.
type BreakerTransport struct {
	inner   Transport
	breaker *gobreaker.CircuitBreaker[*Response]
}

// NewBreakerTransport wraps inner with a circuit breaker
func NewBreakerTransport(inner Transport, cfg BreakerConfig, log *logger.Logger) *BreakerTransport {
	if log == nil {
		log = logger.L()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "transport:" + string(inner.ID()),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: countsAsSuccess,
	})

	return &BreakerTransport{inner: inner, breaker: cb}
}

// countsAsSuccess keeps caller cancellations and rejected requests from
// tripping the breaker; only failures of the backend itself count
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	return apperrors.ExtractCode(err) == apperrors.ErrRequestRejected
}

// ID returns the wrapped backend ID
func (b *BreakerTransport) ID() types.BackendID {
	return b.inner.ID()
}

// Capabilities returns the wrapped capability set
func (b *BreakerTransport) Capabilities() types.CapabilitySet {
	return b.inner.Capabilities()
}

// Encode delegates to the wrapped transport
func (b *BreakerTransport) Encode(req *types.WireRequest) (any, error) {
	return b.inner.Encode(req)
}

// Execute routes the call through the breaker. Only stream setup is
// guarded; failures after the first frame travel on the chunk channel.
func (b *BreakerTransport) Execute(ctx context.Context, payload *types.Payload, streaming bool) (*Response, error) {
	resp, err := b.breaker.Execute(func() (*Response, error) {
		return b.inner.Execute(ctx, payload, streaming)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.Wrap(err, apperrors.ErrCircuitOpen).WithBackend(string(b.ID()))
		}
		return nil, err
	}
	return resp, nil
}

// State returns the current breaker state
func (b *BreakerTransport) State() gobreaker.State {
	return b.breaker.State()
}

var _ Transport = (*BreakerTransport)(nil)
