package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "rbac:grants:"
	// MaxCacheTTL bounds how long a revoked grant can keep working.
	MaxCacheTTL = 5 * time.Minute
	// sharedLoadTimeout bounds a coalesced load that outlives its first caller.
	sharedLoadTimeout = 5 * time.Second
)

type cachedGrants struct {
	Found  bool        `json:"found"`
	Grants []RoleGrant `json:"grants,omitempty"`
}

// CachedSource caches grant lists in Redis in front of another GrantSource.
// Grant lists are cached rather than tiers so expiry is still judged on
// every resolution. Failed lookups are never cached.
type CachedSource struct {
	next   GrantSource
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCachedSource wraps next. The ttl is clamped to MaxCacheTTL.
func NewCachedSource(next GrantSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	return &CachedSource{next: next, client: client, ttl: ttl, logger: logger}
}

// GrantsForUser implements GrantSource.
func (c *CachedSource) GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.GrantsForUser(ctx, userID)
	}
	key := cacheKeyPrefix + userID
	if entry, ok := c.read(ctx, key); ok {
		return entry.unwrap()
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// waiters share this load, so one caller cancelling must not fail the rest
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		grants, err := c.next.GrantsForUser(loadCtx, userID)
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		entry := cachedGrants{Found: err == nil, Grants: grants}
		c.write(loadCtx, key, entry)
		return entry, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(cachedGrants).unwrap()
	}
}

// Invalidate drops cached entries for the given users.
func (c *CachedSource) Invalidate(ctx context.Context, userIDs ...string) error {
	if c == nil || c.client == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cacheKeyPrefix+id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedSource) read(ctx context.Context, key string) (cachedGrants, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log().Warn("rbac cache read", slog.String("key", key), slog.Any("error", err))
		}
		return cachedGrants{}, false
	}
	var entry cachedGrants
	if err := json.Unmarshal(payload, &entry); err != nil {
		c.log().Warn("rbac cache decode", slog.String("key", key), slog.Any("error", err))
		return cachedGrants{}, false
	}
	return entry, true
}

func (c *CachedSource) write(ctx context.Context, key string, entry cachedGrants) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log().Warn("rbac cache write", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *CachedSource) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (e cachedGrants) unwrap() ([]RoleGrant, error) {
	if !e.Found {
		return nil, ErrProfileNotFound
	}
	return e.Grants, nil
}
