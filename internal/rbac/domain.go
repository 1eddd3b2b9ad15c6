package rbac

import (
	"fmt"
	"strings"
	"time"
)

// GrantRole is a role as stored by the role source.
type GrantRole string

// Stored grant roles.
const (
	GrantUser       GrantRole = "user"
	GrantModerator  GrantRole = "moderator"
	GrantAdmin      GrantRole = "admin"
	GrantSuperAdmin GrantRole = "super_admin"
)

// ParseGrantRole validates a raw role name.
func ParseGrantRole(raw string) (GrantRole, error) {
	switch r := GrantRole(strings.TrimSpace(strings.ToLower(raw))); r {
	case GrantUser, GrantModerator, GrantAdmin, GrantSuperAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: role %q", ErrMalformedGrant, raw)
	}
}

// Tier is the collapsed privilege level used by every permission check.
type Tier int

// Tiers ordered by privilege.
const (
	TierGuest Tier = iota
	TierMember
	TierAdmin
)

func (t Tier) String() string {
	switch t {
	case TierMember:
		return "member"
	case TierAdmin:
		return "admin"
	default:
		return "guest"
	}
}

// ParseTier parses the textual tier name.
func ParseTier(raw string) (Tier, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "guest":
		return TierGuest, nil
	case "member":
		return TierMember, nil
	case "admin":
		return TierAdmin, nil
	default:
		return TierGuest, fmt.Errorf("rbac: unknown tier %q", raw)
	}
}

// Collapse maps a stored grant role onto its tier.
// super_admin carries no extra privilege at the tier level.
func Collapse(role GrantRole) (Tier, error) {
	switch role {
	case GrantUser, GrantModerator:
		return TierMember, nil
	case GrantAdmin, GrantSuperAdmin:
		return TierAdmin, nil
	default:
		return TierGuest, fmt.Errorf("%w: role %q", ErrMalformedGrant, string(role))
	}
}

// RoleGrant is one (user, role) assignment read from the role source.
type RoleGrant struct {
	UserID    string     `json:"user_id"`
	Role      GrantRole  `json:"role"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// EffectiveAt reports whether the grant counts at the given instant.
func (g RoleGrant) EffectiveAt(now time.Time) bool {
	if !g.IsActive {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Decision is the outcome of a single permission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns a granting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a refusing decision carrying a user-facing reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Action names a gated operation.
type Action string

// Known actions.
const (
	ActionCreatePost   Action = "createPost"
	ActionManageGroups Action = "manageGroups"
	ActionViewMembers  Action = "viewMembers"
	ActionDeletePost   Action = "deletePost"
	ActionAccessAdmin  Action = "accessAdmin"
)

// Actions lists every action the engine knows about.
func Actions() []Action {
	return []Action{
		ActionCreatePost,
		ActionManageGroups,
		ActionViewMembers,
		ActionDeletePost,
		ActionAccessAdmin,
	}
}

// ParseAction returns the known action for name.
func ParseAction(name string) (Action, bool) {
	a := Action(strings.TrimSpace(name))
	if _, ok := policy[a]; !ok {
		return "", false
	}
	return a, true
}

// Target carries the per-call facts ownership-sensitive actions need.
type Target struct {
	ActorID string
	OwnerID string
}

// Owns reports whether the actor is the resource owner. Blank ids never match.
func (t Target) Owns() bool {
	actor := strings.TrimSpace(t.ActorID)
	owner := strings.TrimSpace(t.OwnerID)
	return actor != "" && owner != "" && actor == owner
}
