package authz

import "context"

type actorKey struct{}

// ContextWithActor returns a copy of ctx carrying actor.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in ctx, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}
