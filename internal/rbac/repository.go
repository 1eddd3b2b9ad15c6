package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnhub/learnhub/internal/platform/db"
)

const grantsForUserSQL = `
SELECT p.id::text, ur.role, ur.is_active, ur.expires_at
FROM profiles p
LEFT JOIN user_roles ur ON ur.user_id = p.id
WHERE p.id::text = $1`

const deactivateExpiredSQL = `
UPDATE user_roles
SET is_active = false, updated_at = now()
WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
RETURNING user_id::text`

// Repository reads role grants from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GrantsForUser returns every grant stored for userID, active or not.
func (r *Repository) GrantsForUser(ctx context.Context, userID string) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, grantsForUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: query grants: %w", err)
	}
	defer rows.Close()

	found := false
	var grants []RoleGrant
	for rows.Next() {
		var (
			profileID string
			role      *string
			active    *bool
			expiresAt *time.Time
		)
		if err := rows.Scan(&profileID, &role, &active, &expiresAt); err != nil {
			return nil, fmt.Errorf("rbac: scan grant: %w", err)
		}
		found = true
		if role == nil {
			// profile without any grant row
			continue
		}
		parsed, err := ParseGrantRole(*role)
		if err != nil {
			return nil, err
		}
		grants = append(grants, RoleGrant{
			UserID:    profileID,
			Role:      parsed,
			IsActive:  active != nil && *active,
			ExpiresAt: expiresAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate grants: %w", err)
	}
	if !found {
		return nil, ErrProfileNotFound
	}
	return grants, nil
}

// DeactivateExpired flips is_active off for grants expired at now and returns
// the distinct affected user ids.
func (r *Repository) DeactivateExpired(ctx context.Context, now time.Time) ([]string, error) {
	var users []string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, deactivateExpiredSQL, now)
		if err != nil {
			return fmt.Errorf("rbac: deactivate expired: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("rbac: collect expired: %w", err)
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			users = append(users, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}
