package shared

import (
	"context"
	"strings"
)

type actorContextKey struct{}

// ContextWithActor stores the authenticated actor id in context.
func ContextWithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(actorID))
}

// ActorFromContext extracts the actor id; empty means no signed-in user.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
