package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/learnhub/learnhub/internal/jobs"
)

// GrantExpirer deactivates stored grants whose expiry has passed.
type GrantExpirer interface {
	DeactivateExpired(ctx context.Context, now time.Time) ([]string, error)
}

// GrantInvalidator drops cached grant lists for users.
type GrantInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
}

// GrantExpiryJob keeps is_active in storage in line with expires_at.
type GrantExpiryJob struct {
	Expirer     GrantExpirer
	Invalidator GrantInvalidator
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewGrantExpiryJob initialises the sweep handler. invalidator may be nil when
// grant caching is disabled.
func NewGrantExpiryJob(expirer GrantExpirer, invalidator GrantInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *GrantExpiryJob {
	return &GrantExpiryJob{
		Expirer:     expirer,
		Invalidator: invalidator,
		Logger:      logger,
		Metrics:     metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep.
func (j *GrantExpiryJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Expirer == nil {
		return errors.New("grant expiry: handler not configured")
	}
	var payload GrantExpiryPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("grant expiry: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Grace < 0 {
		payload.Grace = 0
	}

	tracker := j.Metrics.Track(TaskGrantExpirySweep)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.clock().Add(-payload.Grace)
	users, err := j.Expirer.DeactivateExpired(ctx, cutoff)
	if err != nil {
		j.logger().Error("grant expiry sweep failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddAffected(TaskGrantExpirySweep, len(users))

	if len(users) > 0 && j.Invalidator != nil {
		if err := j.Invalidator.Invalidate(ctx, users...); err != nil {
			// cached entries still age out within the cache ttl
			j.logger().Warn("grant expiry cache invalidation", slog.Int("users", len(users)), slog.Any("error", err))
		}
	}
	j.logger().Info("grant expiry sweep finished",
		slog.Time("cutoff", cutoff),
		slog.Int("users", len(users)),
	)
	return nil
}

func (j *GrantExpiryJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
