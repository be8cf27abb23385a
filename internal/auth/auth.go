// Package auth authenticates API clients by bearer key.
package auth

import (
	"context"
	"errors"
	"strings"
)

// KeyPrefix starts every tool router API key.
const KeyPrefix = "trk_"

// prefixLen is how much of a key is stored in clear for lookup.
const prefixLen = 8

// Authenticator validates an API key and returns the calling client.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// Role orders what a client may do.
type Role int

const (
	RoleViewer   Role = iota // suggestions, tool listing, analytics
	RoleOperator             // plus execution
	RoleAdmin                // plus reset and snapshots
)

func (r Role) String() string {
	switch r {
	case RoleOperator:
		return "operator"
	case RoleAdmin:
		return "admin"
	default:
		return "viewer"
	}
}

// ParseRole converts a stored role name. Unknown names are viewers.
func ParseRole(s string) Role {
	switch s {
	case "operator":
		return RoleOperator
	case "admin":
		return RoleAdmin
	default:
		return RoleViewer
	}
}

// Allows reports whether r includes required.
func (r Role) Allows(required Role) bool {
	return r >= required
}

// Principal is an authenticated API client.
type Principal struct {
	ClientID string
	Role     Role
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// ExtractBearerToken extracts a trk_ API key from an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrUnauthenticated
	}
	token := header
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, KeyPrefix) || len(token) < prefixLen {
		return "", ErrUnauthenticated
	}
	return token, nil
}
