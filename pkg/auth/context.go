package auth

import (
	"context"
	"errors"
)

// Principal is the authenticated actor attached to a request after the
// auth gate, plus the transport provenance used for audit fields.
type Principal struct {
	ID          string
	Email       string
	Permissions []string
	SourceIP    string
	UserAgent   string
}

type contextKey string

const principalContextKey contextKey = "principal"

// ErrNoPrincipal is returned when a handler runs without the auth gate.
var ErrNoPrincipal = errors.New("principal not found in context")

// SetPrincipal attaches the principal to the request context.
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// GetPrincipal extracts the principal from the request context.
func GetPrincipal(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok || p == nil {
		return nil, ErrNoPrincipal
	}
	return p, nil
}
