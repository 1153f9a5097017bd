package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CogniFox/app/models"
)

// UserRepository covers the user-facing record operations. Billing columns
// are written by the billing service only.
type UserRepository interface {
	Register(ctx context.Context, user *models.User) (*models.User, bool, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByCheckoutSessionID(ctx context.Context, sessionID string) (*models.User, error)
}

// TestResultRepository stores finished mini-games.
type TestResultRepository interface {
	Create(ctx context.Context, result *models.TestResult) error
	ListByUser(ctx context.Context, userID string, game models.Game, limit int) ([]models.TestResult, error)
	BestScores(ctx context.Context, userID string) (map[models.Game]int, error)
	Leaderboard(ctx context.Context, game models.Game, limit int) ([]models.LeaderboardEntry, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User       UserRepository
	TestResult TestResultRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		TestResult: NewTestResultRepository(db),
	}
}
