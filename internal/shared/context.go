package shared

import "context"

// Actor identifies who performs an operation. The authentication layer that
// resolves it sits outside this core; handlers read it from trusted headers.
type Actor struct {
	ID   int64
	Name string
}

// Org identifies the tenant an operation runs under.
type Org struct {
	ID   int64
	Code string // three-letter code used in document numbering
}

type actorContextKey struct{}
type orgContextKey struct{}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}

// ContextWithOrg stores the tenant in context.
func ContextWithOrg(ctx context.Context, org Org) context.Context {
	return context.WithValue(ctx, orgContextKey{}, org)
}

// OrgFromContext extracts the tenant from context.
func OrgFromContext(ctx context.Context) Org {
	org, _ := ctx.Value(orgContextKey{}).(Org)
	return org
}
