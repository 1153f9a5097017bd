package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
)

// Repository provides the store operations used by the billing service. All
// user writes are partial updates of the given columns.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	FindUserIDByCustomerID(ctx context.Context, customerID string) (string, error)
	FindUserIDBySubscriptionID(ctx context.Context, subscriptionID string) (string, error)
	UpdateUserFields(ctx context.Context, userID string, fields map[string]interface{}) error
	CreateUserIfNotExists(ctx context.Context, user *models.User) error
	DeleteTestResults(ctx context.Context, userID string) error
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, error)
	MarkWebhookProcessed(ctx context.Context, provider, providerEventID, processingError string) error
	DeleteWebhookEvent(ctx context.Context, provider, providerEventID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) FindUserIDByCustomerID(ctx context.Context, customerID string) (string, error) {
	return r.findUserIDBy(ctx, "customer_id", customerID)
}

func (r *gormRepository) FindUserIDBySubscriptionID(ctx context.Context, subscriptionID string) (string, error) {
	return r.findUserIDBy(ctx, "subscription_id", subscriptionID)
}

func (r *gormRepository) findUserIDBy(ctx context.Context, column, value string) (string, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Select("id").
		Where(column+" = ?", value).
		Order("updated_at DESC").
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.ErrUserNotFound
		}
		return "", err
	}
	return u.ID, nil
}

func (r *gormRepository) UpdateUserFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	tx := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	// MySQL reports 0 affected rows when the values did not change.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperror.ErrUserNotFound
	}
	return nil
}

func (r *gormRepository) CreateUserIfNotExists(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(user).Error
}

func (r *gormRepository) DeleteTestResults(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.TestResult{}).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, provider, providerEventID, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Updates(updates).Error
}

func (r *gormRepository) DeleteWebhookEvent(ctx context.Context, provider, providerEventID string) error {
	return r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Delete(&models.WebhookEvent{}).Error
}
