package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScenarios(t *testing.T) {
	resolver := NewResolver(newFakeSource())
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		want   Tier
	}{
		{"active admin grant", "admin-test-user-id", TierAdmin},
		{"active user grant", "member-test-user-id", TierMember},
		{"no profile", "guest-test-user-id", TierGuest},
		{"inactive user grant", "inactive-test-user-id", TierGuest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.Resolve(ctx, tt.userID))
		})
	}
}

func TestLookupNotFoundIsNotAnError(t *testing.T) {
	resolver := NewResolver(newFakeSource())

	tier, err := resolver.Lookup(context.Background(), "guest-test-user-id")
	require.NoError(t, err)
	assert.Equal(t, TierGuest, tier)
}

func TestLookupBlankUserSkipsSource(t *testing.T) {
	source := newFakeSource()
	resolver := NewResolver(source)

	for _, id := range []string{"", "   ", "\t"} {
		tier, err := resolver.Lookup(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, TierGuest, tier)
	}
	assert.Zero(t, source.totalCalls())
}

func TestLookupSourceErrorFailsClosed(t *testing.T) {
	source := newFakeSource()
	source.failWith(errors.New("connection refused"))
	resolver := NewResolver(source)

	tier, err := resolver.Lookup(context.Background(), "admin-test-user-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, TierGuest, tier)

	assert.Equal(t, TierGuest, resolver.Resolve(context.Background(), "admin-test-user-id"))
}

func TestLookupRecoversFromSourcePanic(t *testing.T) {
	source := newFakeSource()
	source.panicMsg = "nil map"
	resolver := NewResolver(source)

	tier, err := resolver.Lookup(context.Background(), "admin-test-user-id")
	require.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, TierGuest, tier)
}

func TestLookupTimeoutDoesNotHang(t *testing.T) {
	source := newFakeSource()
	source.block = true
	resolver := NewResolver(source, WithLookupTimeout(20*time.Millisecond))

	start := time.Now()
	tier, err := resolver.Lookup(context.Background(), "admin-test-user-id")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrLookupFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, TierGuest, tier)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestLookupCancelledContext(t *testing.T) {
	source := newFakeSource()
	source.block = true
	resolver := NewResolver(source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, TierGuest, resolver.Resolve(ctx, "admin-test-user-id"))
}

func TestLookupWithoutSource(t *testing.T) {
	var resolver *Resolver
	tier, err := resolver.Lookup(context.Background(), "admin-test-user-id")
	require.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, TierGuest, tier)
}

func TestLookupMalformedGrantFailsClosed(t *testing.T) {
	source := newFakeSource()
	source.set("odd-user", grant(GrantAdmin, true), RoleGrant{Role: GrantRole("owner"), IsActive: true})
	resolver := NewResolver(source)

	tier, err := resolver.Lookup(context.Background(), "odd-user")
	require.ErrorIs(t, err, ErrLookupFailed)
	assert.ErrorIs(t, err, ErrMalformedGrant)
	assert.Equal(t, TierGuest, tier)
}

func TestTierFromGrantsPrecedence(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		grants []RoleGrant
		want   Tier
	}{
		{"empty", nil, TierGuest},
		{"super admin collapses to admin", []RoleGrant{grant(GrantSuperAdmin, true)}, TierAdmin},
		{"moderator is member", []RoleGrant{grant(GrantModerator, true)}, TierMember},
		{"admin wins over user", []RoleGrant{grant(GrantUser, true), grant(GrantAdmin, true)}, TierAdmin},
		{"inactive admin ignored", []RoleGrant{grant(GrantAdmin, false), grant(GrantUser, true)}, TierMember},
		{"all inactive", []RoleGrant{grant(GrantAdmin, false), grant(GrantModerator, false)}, TierGuest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TierFromGrants(tt.grants, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpiredGrantIsIgnoredEvenWhenActive(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	source := newFakeSource()
	source.set("expired-admin",
		RoleGrant{Role: GrantAdmin, IsActive: true, ExpiresAt: &past},
		RoleGrant{Role: GrantUser, IsActive: true},
	)
	source.set("future-admin", RoleGrant{Role: GrantAdmin, IsActive: true, ExpiresAt: &future})
	source.set("expires-now", RoleGrant{Role: GrantAdmin, IsActive: true, ExpiresAt: &now})

	resolver := NewResolver(source, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	assert.Equal(t, TierMember, resolver.Resolve(ctx, "expired-admin"))
	assert.Equal(t, TierAdmin, resolver.Resolve(ctx, "future-admin"))
	assert.Equal(t, TierGuest, resolver.Resolve(ctx, "expires-now"))
}

// allGrantSets enumerates every subset of the eight (role, active) pairs.
func allGrantSets() [][]RoleGrant {
	var pool []RoleGrant
	for _, role := range []GrantRole{GrantUser, GrantModerator, GrantAdmin, GrantSuperAdmin} {
		pool = append(pool, grant(role, true), grant(role, false))
	}
	sets := make([][]RoleGrant, 0, 1<<len(pool))
	for mask := 0; mask < 1<<len(pool); mask++ {
		var set []RoleGrant
		for i, g := range pool {
			if mask&(1<<i) != 0 {
				set = append(set, g)
			}
		}
		sets = append(sets, set)
	}
	return sets
}

func TestTierFromGrantsInvariants(t *testing.T) {
	now := time.Now()
	for _, set := range allGrantSets() {
		got, err := TierFromGrants(set, now)
		require.NoError(t, err)

		var hasAdmin, hasMember bool
		for _, g := range set {
			if !g.IsActive {
				continue
			}
			switch g.Role {
			case GrantAdmin, GrantSuperAdmin:
				hasAdmin = true
			case GrantUser, GrantModerator:
				hasMember = true
			}
		}
		switch {
		case hasAdmin:
			assert.Equal(t, TierAdmin, got, "set %v", set)
		case hasMember:
			assert.Equal(t, TierMember, got, "set %v", set)
		default:
			assert.Equal(t, TierGuest, got, "set %v", set)
		}

		for _, adminRole := range []GrantRole{GrantAdmin, GrantSuperAdmin} {
			grown := append(append([]RoleGrant{}, set...), grant(adminRole, true))
			after, err := TierFromGrants(grown, now)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, after, got, "adding %s to %v lowered the tier", adminRole, set)
			assert.Equal(t, TierAdmin, after)
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	resolver := NewResolver(newFakeSource())
	ctx := context.Background()
	for _, id := range []string{"admin-test-user-id", "member-test-user-id", "guest-test-user-id", ""} {
		first := resolver.Resolve(ctx, id)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, resolver.Resolve(ctx, id))
		}
	}
}

func TestResolveReadsFreshGrantsEachCall(t *testing.T) {
	source := newFakeSource()
	resolver := NewResolver(source)
	ctx := context.Background()

	require.Equal(t, TierAdmin, resolver.Resolve(ctx, "admin-test-user-id"))
	source.set("admin-test-user-id", grant(GrantAdmin, false))
	assert.Equal(t, TierGuest, resolver.Resolve(ctx, "admin-test-user-id"))
	assert.Equal(t, 2, source.callCount("admin-test-user-id"))
}

func TestParseGrantRoleAndTier(t *testing.T) {
	role, err := ParseGrantRole(" Super_Admin ")
	require.NoError(t, err)
	assert.Equal(t, GrantSuperAdmin, role)

	_, err = ParseGrantRole("root")
	assert.ErrorIs(t, err, ErrMalformedGrant)

	for _, tier := range []Tier{TierGuest, TierMember, TierAdmin} {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}
	_, err = ParseTier("owner")
	assert.Error(t, err)
}
