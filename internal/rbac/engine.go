package rbac

import (
	"context"
	"log/slog"
)

// User-facing denial reasons.
const (
	ReasonCreatePostGuest    = "Only registered members can create posts. Please sign up or sign in to continue."
	ReasonCreatePostDenied   = "Insufficient permissions to create posts."
	ReasonManageGroupsGuest  = "Please sign in as an administrator to manage groups."
	ReasonManageGroupsDenied = "Only administrators can manage groups."
	ReasonViewMembersGuest   = "Please sign in to view the member list."
	ReasonViewMembersDenied  = "Insufficient permissions to view the member list."
	ReasonDeletePostNotOwner = "You can only delete your own posts."
	ReasonAccessAdminGuest   = "Please sign in as an administrator to access the admin dashboard."
	ReasonAccessAdminDenied  = "Only administrators can access the admin dashboard."
	ReasonVerifyFailed       = "Unable to verify permissions. Please try again."
	ReasonUnknownPermission  = "Unknown permission type"
)

type tierSet map[Tier]struct{}

func tiers(ts ...Tier) tierSet {
	set := make(tierSet, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}

func (s tierSet) has(t Tier) bool {
	_, ok := s[t]
	return ok
}

// rule describes who may perform an action. anyTiers are allowed outright,
// ownerTiers only when the actor owns the target.
type rule struct {
	anyTiers        tierSet
	ownerTiers      tierSet
	guestReason     string
	deniedReason    string
	ownershipReason string
}

var policy = map[Action]rule{
	ActionCreatePost: {
		anyTiers:     tiers(TierMember, TierAdmin),
		guestReason:  ReasonCreatePostGuest,
		deniedReason: ReasonCreatePostDenied,
	},
	ActionManageGroups: {
		anyTiers:     tiers(TierAdmin),
		guestReason:  ReasonManageGroupsGuest,
		deniedReason: ReasonManageGroupsDenied,
	},
	ActionViewMembers: {
		anyTiers:     tiers(TierMember, TierAdmin),
		guestReason:  ReasonViewMembersGuest,
		deniedReason: ReasonViewMembersDenied,
	},
	ActionDeletePost: {
		anyTiers:        tiers(TierAdmin),
		ownerTiers:      tiers(TierMember),
		guestReason:     ReasonDeletePostNotOwner,
		deniedReason:    ReasonDeletePostNotOwner,
		ownershipReason: ReasonDeletePostNotOwner,
	},
	ActionAccessAdmin: {
		anyTiers:     tiers(TierAdmin),
		guestReason:  ReasonAccessAdminGuest,
		deniedReason: ReasonAccessAdminDenied,
	},
}

// Engine decides allow/deny for named actions.
type Engine struct {
	resolver *Resolver
	logger   *slog.Logger
	metrics  *Metrics
}

// NewEngine constructs an Engine resolving tiers through resolver.
func NewEngine(resolver *Resolver, logger *slog.Logger, metrics *Metrics) *Engine {
	return &Engine{resolver: resolver, logger: logger, metrics: metrics}
}

// Evaluate decides action for an already resolved tier. It performs no I/O.
func (e *Engine) Evaluate(action Action, tier Tier, target Target) Decision {
	d := evaluate(action, tier, target)
	e.metrics.observeDecision(action, d)
	return d
}

func evaluate(action Action, tier Tier, target Target) Decision {
	r, ok := policy[action]
	if !ok {
		return Deny(ReasonUnknownPermission)
	}
	if r.anyTiers.has(tier) {
		return Allow()
	}
	if r.ownerTiers.has(tier) {
		if target.Owns() {
			return Allow()
		}
		return Deny(r.ownershipReason)
	}
	if tier == TierGuest {
		return Deny(r.guestReason)
	}
	return Deny(r.deniedReason)
}

// Check resolves userID afresh and decides action. A lookup failure denies.
func (e *Engine) Check(ctx context.Context, action Action, userID string, target Target) Decision {
	if _, ok := policy[action]; !ok {
		return e.Evaluate(action, TierGuest, target)
	}
	tier, err := e.lookup(ctx, userID)
	if err != nil {
		d := Deny(ReasonVerifyFailed)
		e.metrics.observeDecision(action, d)
		return d
	}
	// Ownership is always judged against the subject that was resolved.
	target.ActorID = userID
	return e.Evaluate(action, tier, target)
}

// Tier exposes the fail-safe resolution for callers that only need the tier.
func (e *Engine) Tier(ctx context.Context, userID string) Tier {
	tier, err := e.lookup(ctx, userID)
	if err != nil {
		return TierGuest
	}
	return tier
}

func (e *Engine) lookup(ctx context.Context, userID string) (Tier, error) {
	tier, err := e.resolver.Lookup(ctx, userID)
	if err != nil {
		e.log().Warn("rbac lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return TierGuest, err
	}
	return tier, nil
}

func (e *Engine) log() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// CanCreatePost reports whether userID may publish a post.
func (e *Engine) CanCreatePost(ctx context.Context, userID string) Decision {
	return e.Check(ctx, ActionCreatePost, userID, Target{ActorID: userID})
}

// CanManageGroups reports whether userID may administer groups.
func (e *Engine) CanManageGroups(ctx context.Context, userID string) Decision {
	return e.Check(ctx, ActionManageGroups, userID, Target{ActorID: userID})
}

// CanViewMembers reports whether userID may list members.
func (e *Engine) CanViewMembers(ctx context.Context, userID string) Decision {
	return e.Check(ctx, ActionViewMembers, userID, Target{ActorID: userID})
}

// CanDeletePost reports whether actorID may delete a post written by authorID.
func (e *Engine) CanDeletePost(ctx context.Context, actorID, authorID string) Decision {
	return e.Check(ctx, ActionDeletePost, actorID, Target{ActorID: actorID, OwnerID: authorID})
}

// CanAccessAdmin reports whether userID may open the admin screens.
func (e *Engine) CanAccessAdmin(ctx context.Context, userID string) Decision {
	return e.Check(ctx, ActionAccessAdmin, userID, Target{ActorID: userID})
}
