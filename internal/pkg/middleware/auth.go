package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/identity"
	"github.com/ManuelReschke/CogniFox/internal/pkg/usercontext"
)

const verifyTimeout = 10 * time.Second

// RequireBearerIdentity verifies the `Authorization: Bearer <id-token>` header
// with the identity provider and stores the caller in the user context.
// Missing or invalid tokens are answered with a JSON 401.
func RequireBearerIdentity(provider identity.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := VerifyBearer(c, provider); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": err.Error()})
		}
		return c.Next()
	}
}

// VerifyBearer authenticates the request and stores the caller in the user
// context. The returned error wraps apperror.ErrAuthentication.
func VerifyBearer(c *fiber.Ctx, provider identity.Provider) (*identity.Identity, error) {
	token := extractBearerToken(c)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", apperror.ErrAuthentication)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), verifyTimeout)
	defer cancel()

	id, err := provider.VerifyIDToken(ctx, token)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidToken) {
			log.Warnf("[Auth] token verification failed: %v", err)
		}
		return nil, fmt.Errorf("%w: invalid bearer token", apperror.ErrAuthentication)
	}

	usercontext.Set(c, usercontext.UserContext{
		UserID:     id.UID,
		Email:      id.Email,
		IsLoggedIn: true,
	})
	return id, nil
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
