package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/postflow/aicore/auth"
)

// Context key type to avoid collisions
type contextKey string

// ClaimsKey is the context key for JWT claims
const ClaimsKey contextKey = "claims"

// GetRequestIDFromContext retrieves the chi request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves JWT claims from context
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds JWT claims to the context
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
