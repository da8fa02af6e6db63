package common

import (
	"context"
)

// UserContext identifies the authenticated user for a request. It is
// populated by the JWT bearer middleware; handlers behind authentication
// can assume it is present.
type UserContext struct {
	Username string
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUsername returns the authenticated username from context, or ""
// when the request carries no user identity.
func ResolveUsername(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.Username
	}
	return ""
}
