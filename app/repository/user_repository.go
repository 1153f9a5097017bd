package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Register inserts the record unless one with the same id exists and returns
// the stored row. created is false when the record was already there; its
// billing state is left untouched in that case.
func (r *userRepository) Register(ctx context.Context, user *models.User) (*models.User, bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(user)
	if tx.Error != nil {
		return nil, false, tx.Error
	}
	stored, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, tx.RowsAffected > 0, nil
}

// GetByID retrieves a user by identity uid
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByCheckoutSessionID resolves the user a hosted checkout was started for.
func (r *userRepository) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*models.User, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperror.ErrUserNotFound
	}
	var user models.User
	err := r.db.WithContext(ctx).Where("last_checkout_session_id = ?", sessionID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
