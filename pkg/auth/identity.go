package auth

import "context"

// Role classifies the API key a request authenticated with.
type Role string

const (
	RoleBackend  Role = "backend"
	RoleFrontend Role = "frontend"
	RoleUnauth   Role = "unauth"
)

// SecConfig carries the security settings the middleware needs.
type SecConfig struct {
	BackendKeys  map[string]struct{}
	FrontendKeys map[string]struct{}
	SigningKeys  map[string]struct{}
	RPS          float64
	Burst        int
}

// Identity is the resolved caller of a request: the verified user id and
// whether the request carried a backend (master) key.
type Identity struct {
	UserID string
	Role   Role
}

type ctxIdentityKey struct{}

// WithIdentity stores the resolved identity in the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// IdentityFromContext returns the resolved identity, or a zero Identity
// when the request was not authenticated.
func IdentityFromContext(ctx context.Context) Identity {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{Role: RoleUnauth}
}
