package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by locally issued identity tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// JWTProvider verifies HS256 tokens signed with a shared secret. It backs
// local development and tests where no Firebase project is available. The
// identity lives entirely in the token, so DeleteUser has nothing to remove.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

// IssueToken signs a token for uid, valid for ttl.
func (p *JWTProvider) IssueToken(uid, email string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email: email,
	})
	return token.SignedString(p.secret)
}

func (p *JWTProvider) VerifyIDToken(ctx context.Context, tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: claims.Subject, Email: claims.Email}, nil
}

func (p *JWTProvider) DeleteUser(ctx context.Context, uid string) error {
	log.Infof("[Identity] jwt provider: nothing to delete for %s", uid)
	return nil
}
