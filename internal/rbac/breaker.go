package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerConfig configures BreakerSource.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	// Interval clears failure counts while closed.
	Interval time.Duration
}

// BreakerSource stops calling an unhealthy role source. While open every
// lookup fails immediately, which callers see as a lookup failure.
type BreakerSource struct {
	next    GrantSource
	breaker *gobreaker.CircuitBreaker[[]RoleGrant]
}

// NewBreakerSource wraps next with a circuit breaker. Zero config values use defaults.
func NewBreakerSource(next GrantSource, cfg BreakerConfig, logger *slog.Logger) *BreakerSource {
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
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[[]RoleGrant](gobreaker.Settings{
		Name:        "rbac:grant-source",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a missing profile is a healthy answer; a caller that went away says
			// nothing about the store, but a missed deadline does
			return err == nil || errors.Is(err, ErrProfileNotFound) || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerSource{next: next, breaker: cb}
}

// GrantsForUser implements GrantSource.
func (b *BreakerSource) GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	grants, err := b.breaker.Execute(func() ([]RoleGrant, error) {
		return b.next.GrantsForUser(ctx, userID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("role source circuit open: %w", err)
	}
	return grants, err
}

// State returns the breaker state for monitoring.
func (b *BreakerSource) State() gobreaker.State {
	return b.breaker.State()
}
