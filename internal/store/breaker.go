package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerOptions struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
}

func DefaultBreakerOptions() BreakerOptions {
	return BreakerOptions{
		ConsecutiveFailures: 3,
		Timeout:             30 * time.Second,
		MaxRequests:         1,
	}
}

// breakerBackend fails fast while the wrapped backend is unhealthy so the
// engine moves on to the next backend without waiting for a timeout.
type breakerBackend struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps b in a circuit breaker. ErrNotFound and ErrConflict are
// answers from a healthy backend and do not count as failures.
func WithBreaker(b Backend, opts BreakerOptions) Backend {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        b.Name(),
		MaxRequests: opts.MaxRequests,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("storage circuit breaker state changed",
				"backend", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
		},
	})
	return &breakerBackend{next: b, cb: cb}
}

func (b *breakerBackend) Name() string {
	return b.next.Name()
}

func (b *breakerBackend) Fetch(ctx context.Context) (Blob, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx)
	})
	if err != nil {
		return Blob{}, err
	}
	return v.(Blob), nil
}

func (b *breakerBackend) Store(ctx context.Context, blob Blob) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Store(ctx, blob)
	})
	return err
}
