package controllers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/app/repository"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
	"github.com/ManuelReschke/CogniFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/CogniFox/internal/pkg/usercontext"
)

type ResultsController struct {
	Results repository.TestResultRepository
	Status  StatusReader
}

func NewResultsController(results repository.TestResultRepository, status StatusReader) *ResultsController {
	return &ResultsController{Results: results, Status: status}
}

type resultBody struct {
	Game       string `json:"game"`
	Score      int    `json:"score"`
	DurationMS int64  `json:"durationMs"`
}

// HandleCreateResult stores a finished mini-game. Recording is open to every
// authenticated user; viewing results requires a subscription.
func (rc *ResultsController) HandleCreateResult(c *fiber.Ctx) error {
	var body resultBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, fmt.Errorf("%w: invalid request body", apperror.ErrValidation))
	}
	game := strings.TrimSpace(body.Game)
	if !models.IsValidGame(game) {
		return respondError(c, fmt.Errorf("%w: unknown game %q", apperror.ErrValidation, game))
	}

	result, err := models.NewTestResult(usercontext.GetUserID(c), models.Game(game), body.Score, body.DurationMS)
	if err != nil {
		return respondError(c, fmt.Errorf("%w: %v", apperror.ErrValidation, err))
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()
	if err := rc.Results.Create(ctx, result); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (rc *ResultsController) HandleListResults(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if err := rc.requireEntitlement(c, userID); err != nil {
		return respondError(c, err)
	}

	game := strings.TrimSpace(c.Query("game"))
	if game != "" && !models.IsValidGame(game) {
		return respondError(c, fmt.Errorf("%w: unknown game %q", apperror.ErrValidation, game))
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	results, err := rc.Results.ListByUser(ctx, userID, models.Game(game), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}
	best, err := rc.Results.BestScores(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"results": results, "best": best})
}

func (rc *ResultsController) HandleLeaderboard(c *fiber.Ctx) error {
	game := strings.TrimSpace(c.Params("game"))
	if !models.IsValidGame(game) {
		return respondError(c, fmt.Errorf("%w: unknown game %q", apperror.ErrValidation, game))
	}
	if err := rc.requireEntitlement(c, usercontext.GetUserID(c)); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	entries, err := rc.Results.Leaderboard(ctx, models.Game(game), c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"game": game, "entries": entries})
}

func (rc *ResultsController) requireEntitlement(c *fiber.Ctx, userID string) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	snap, err := rc.Status.SubscriptionStatus(ctx, userID)
	if err != nil {
		return err
	}
	if !entitlements.CanViewResults(snap.SubscriptionStatus, snap.PaymentCompleted) {
		return apperror.ErrPaymentRequired
	}
	return nil
}
