package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultLookupTimeout = 3 * time.Second

// GrantSource reads the role grants stored for a user. It returns
// ErrProfileNotFound when the user has no profile at all.
type GrantSource interface {
	GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error)
}

// GrantSourceFunc adapts a function to GrantSource.
type GrantSourceFunc func(ctx context.Context, userID string) ([]RoleGrant, error)

// GrantsForUser implements GrantSource.
func (f GrantSourceFunc) GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	return f(ctx, userID)
}

// Resolver turns a user id into a Tier.
type Resolver struct {
	source  GrantSource
	timeout time.Duration
	clock   func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the time source used for expiry checks.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLookupTimeout bounds a single role source call. Zero disables the bound.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithResolverLogger sets the logger used for lookup failures.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithResolverMetrics records lookup outcomes.
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver builds a Resolver reading from source.
func NewResolver(source GrantSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:  source,
		timeout: defaultLookupTimeout,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the tier for userID. Every lookup failure resolves to TierGuest.
func (r *Resolver) Resolve(ctx context.Context, userID string) Tier {
	tier, err := r.Lookup(ctx, userID)
	if err != nil {
		r.log().Warn("rbac resolve fallback to guest", slog.String("user_id", userID), slog.Any("error", err))
		return TierGuest
	}
	return tier
}

// Lookup reads the grants for userID and collapses them. A missing profile or
// blank id is not an error and yields TierGuest. Every other failure is
// reported wrapped in ErrLookupFailed.
func (r *Resolver) Lookup(ctx context.Context, userID string) (Tier, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TierGuest, nil
	}
	if r == nil || r.source == nil {
		return TierGuest, fmt.Errorf("%w: no role source configured", ErrLookupFailed)
	}
	grants, err := r.fetch(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		r.metrics.observeLookup("not_found")
		return TierGuest, nil
	}
	if err != nil {
		r.metrics.observeLookup("error")
		return TierGuest, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	tier, err := TierFromGrants(grants, r.clock())
	if err != nil {
		r.metrics.observeLookup("error")
		return TierGuest, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	r.metrics.observeLookup("ok")
	return tier, nil
}

type fetchResult struct {
	grants []RoleGrant
	err    error
}

// fetch calls the source on its own goroutine so a source that ignores ctx
// still cannot hold the caller past the deadline.
func (r *Resolver) fetch(ctx context.Context, userID string) ([]RoleGrant, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fetchResult{err: fmt.Errorf("role source panic: %v", rec)}
			}
		}()
		grants, err := r.source.GrantsForUser(ctx, userID)
		done <- fetchResult{grants: grants, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.grants, res.err
	}
}

func (r *Resolver) log() *slog.Logger {
	if r == nil || r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

// TierFromGrants collapses a grant set observed at now. Inactive and expired
// grants are ignored; an admin-tier grant wins over member-tier grants.
// A grant with an unrecognised role makes the whole set malformed.
func TierFromGrants(grants []RoleGrant, now time.Time) (Tier, error) {
	best := TierGuest
	for _, g := range grants {
		tier, err := Collapse(g.Role)
		if err != nil {
			return TierGuest, err
		}
		if !g.EffectiveAt(now) {
			continue
		}
		if tier > best {
			best = tier
		}
	}
	return best, nil
}
