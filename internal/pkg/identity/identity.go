// Package identity wraps the external identity provider: bearer token
// verification and account deletion.
package identity

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Identity is the verified subject of a bearer token.
type Identity struct {
	UID   string
	Email string
}

// Provider is the identity backend the API authenticates against.
type Provider interface {
	VerifyIDToken(ctx context.Context, token string) (*Identity, error)
	DeleteUser(ctx context.Context, uid string) error
}
