package auth

import (
	"context"
)

// StaticAuthenticator is a development-only authenticator that accepts any
// trk_ key as an admin.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*Principal, error) {
	if len(token) < prefixLen {
		return nil, ErrUnauthenticated
	}
	return &Principal{
		ClientID: "static-" + token[:prefixLen],
		Role:     RoleAdmin,
	}, nil
}
