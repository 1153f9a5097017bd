package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/app/repository"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/CogniFox/internal/pkg/usercontext"
)

type UserController struct {
	Users repository.UserRepository
}

func NewUserController(users repository.UserRepository) *UserController {
	return &UserController{Users: users}
}

// registerBody deliberately has no billing fields; new records always start
// in payment_required.
type registerBody struct {
	Email        string `json:"email"`
	AuthProvider string `json:"authProvider"`
}

// HandleRegister creates the caller's user record. Registering twice returns
// the existing record.
func (uc *UserController) HandleRegister(c *fiber.Ctx) error {
	caller := usercontext.GetUserContext(c)

	var body registerBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return respondError(c, fmt.Errorf("%w: invalid request body", apperror.ErrValidation))
		}
	}
	email := strings.TrimSpace(caller.Email)
	if email == "" {
		email = strings.TrimSpace(body.Email)
	}

	user, err := models.NewUser(caller.UserID, email, body.AuthProvider)
	if err != nil {
		return respondError(c, fmt.Errorf("%w: %v", apperror.ErrValidation, err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	stored, created, err := uc.Users.Register(ctx, user)
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
		log.Infof("[User] registered %s (%s)", stored.ID, stored.AuthProvider)
	}
	return c.Status(status).JSON(stored)
}

func (uc *UserController) HandleGetMe(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	user, err := uc.Users.GetByID(ctx, usercontext.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(meResponse{User: user, CanViewResults: entitlements.UserCanViewResults(user)})
}

// meResponse is the stored record plus what the client may unlock with it.
type meResponse struct {
	*models.User
	CanViewResults bool `json:"can_view_results"`
}
