package rbac

import (
	"context"
	"strings"
)

// CheckMultiple evaluates several actions for userID with a single role
// lookup. Requested names are trimmed; duplicates collapse into one key since
// they necessarily share the same decision. Unknown names are denied
// individually without affecting the others.
func (e *Engine) CheckMultiple(ctx context.Context, userID string, names []string) map[string]Decision {
	return e.CheckMultipleOn(ctx, userID, "", names)
}

// CheckMultipleOn is CheckMultiple for a batch that concerns a single
// resource owned by ownerID, so ownership-sensitive actions can be answered.
func (e *Engine) CheckMultipleOn(ctx context.Context, userID, ownerID string, names []string) map[string]Decision {
	out := make(map[string]Decision, len(names))
	if len(names) == 0 {
		return out
	}

	known := make(map[string]Action, len(names))
	for _, name := range names {
		key := strings.TrimSpace(name)
		if _, seen := out[key]; seen {
			continue
		}
		action, ok := ParseAction(key)
		if !ok {
			out[key] = e.Evaluate(Action(key), TierGuest, Target{})
			continue
		}
		known[key] = action
		out[key] = Decision{}
	}
	if len(known) == 0 {
		return out
	}

	tier, err := e.lookup(ctx, userID)
	target := Target{ActorID: userID, OwnerID: ownerID}
	for key, action := range known {
		if err != nil {
			d := Deny(ReasonVerifyFailed)
			e.metrics.observeDecision(action, d)
			out[key] = d
			continue
		}
		out[key] = e.Evaluate(action, tier, target)
	}
	return out
}
