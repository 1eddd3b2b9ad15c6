package main

import (
	"context"
	"log/slog"

	"github.com/learnhub/learnhub/internal/app"
	"github.com/learnhub/learnhub/internal/platform/cache"
	"github.com/learnhub/learnhub/internal/rbac"
)

// grantSource stacks the circuit breaker over repo and, when enabled and
// reachable at startup, the Redis grant cache over that. The returned func
// releases the Redis client.
func grantSource(ctx context.Context, cfg *app.Config, repo rbac.GrantSource, logger *slog.Logger) (rbac.GrantSource, func()) {
	var source rbac.GrantSource = rbac.NewBreakerSource(repo, cfg.BreakerConfig(), logger)
	if cfg.RBACCacheTTL <= 0 {
		return source, func() {}
	}
	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unreachable, grant cache disabled", slog.Any("error", err))
		_ = client.Close()
		return source, func() {}
	}
	return rbac.NewCachedSource(source, client, cfg.RBACCacheTTL, logger), func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
