package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CogniFox/app/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type testResultRepository struct {
	db *gorm.DB
}

func NewTestResultRepository(db *gorm.DB) TestResultRepository {
	return &testResultRepository{db: db}
}

func (r *testResultRepository) Create(ctx context.Context, result *models.TestResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// ListByUser returns the newest results first. An empty game lists all games.
func (r *testResultRepository) ListByUser(ctx context.Context, userID string, game models.Game, limit int) ([]models.TestResult, error) {
	var results []models.TestResult
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if game != "" {
		q = q.Where("game = ?", game)
	}
	err := q.Order("created_at DESC").Limit(clampLimit(limit)).Find(&results).Error
	return results, err
}

// BestScores returns the user's highest score per game played.
func (r *testResultRepository) BestScores(ctx context.Context, userID string) (map[models.Game]int, error) {
	var rows []struct {
		Game      models.Game
		BestScore int
	}
	err := r.db.WithContext(ctx).Model(&models.TestResult{}).
		Select("game, MAX(score) AS best_score").
		Where("user_id = ?", userID).
		Group("game").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	best := make(map[models.Game]int, len(rows))
	for _, row := range rows {
		best[row.Game] = row.BestScore
	}
	return best, nil
}

// Leaderboard ranks users of one game by their best score.
func (r *testResultRepository) Leaderboard(ctx context.Context, game models.Game, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := r.db.WithContext(ctx).Model(&models.TestResult{}).
		Select("user_id, MAX(score) AS best_score").
		Where("game = ?", game).
		Group("user_id").
		Order("best_score DESC, user_id ASC").
		Limit(clampLimit(limit)).
		Scan(&entries).Error
	return entries, err
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
