package identity

import "context"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// Actor is the caller as asserted by the upstream identity service.
type Actor struct {
	ID   string
	Role Role
	Name string
}

func (a Actor) IsProvider() bool {
	return a.Role == RoleProvider
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok && a.ID != ""
}
