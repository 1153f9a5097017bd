package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Game string

const (
	GamePatternReasoning Game = "pattern_reasoning"
	GameEyeHand          Game = "eye_hand"
	GameStroop           Game = "stroop"
	GameSpeedReading     Game = "speed_reading"
	GameShortTermMemory  Game = "short_term_memory"
	GameVisualSearch     Game = "visual_search"
	GameRhythm           Game = "rhythm"
)

// Games lists every mini-game in battery order.
var Games = []Game{
	GamePatternReasoning,
	GameEyeHand,
	GameStroop,
	GameSpeedReading,
	GameShortTermMemory,
	GameVisualSearch,
	GameRhythm,
}

const MaxScore = 1000

// IsValidGame reports whether g names one of the known mini-games.
func IsValidGame(g string) bool {
	for _, game := range Games {
		if string(game) == g {
			return true
		}
	}
	return false
}

// TestResult is one finished mini-game.
type TestResult struct {
	ID         string    `gorm:"primaryKey;type:char(36)" json:"id"`
	UserID     string    `gorm:"type:varchar(128);not null;index:idx_test_results_user_game,priority:1" json:"user_id" validate:"required"`
	Game       Game      `gorm:"type:varchar(40);not null;index:idx_test_results_user_game,priority:2;index:idx_test_results_game_score,priority:1" json:"game" validate:"required"`
	Score      int       `gorm:"not null;index:idx_test_results_game_score,priority:2" json:"score" validate:"gte=0,lte=1000"`
	DurationMS int64     `gorm:"not null;default:0" json:"duration_ms" validate:"gte=0"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func NewTestResult(userID string, game Game, score int, durationMS int64) (*TestResult, error) {
	r := &TestResult{
		ID:         uuid.NewString(),
		UserID:     userID,
		Game:       game,
		Score:      score,
		DurationMS: durationMS,
	}
	if err := validator.New().Struct(r); err != nil {
		return nil, err
	}
	return r, nil
}

// LeaderboardEntry is a user's best score for one game.
type LeaderboardEntry struct {
	UserID    string `json:"user_id"`
	BestScore int    `json:"best_score"`
}
