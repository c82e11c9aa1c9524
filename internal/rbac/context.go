package rbac

import "context"

// Principal is the authenticated user snapshot carried through request
// contexts and written into audit entries. It is a copy taken at
// authentication time, not a live directory reference.
type Principal struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Region string `json:"region,omitempty"`
}

// HasPermission checks the principal's role against the static matrix.
func (p Principal) HasPermission(perm Permission) bool {
	return HasPermission(p.Role, perm)
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// CanAccess checks a permission against the context principal; false when
// nobody is authenticated.
func CanAccess(ctx context.Context, perm Permission) bool {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return principal.HasPermission(perm)
}
