package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/CogniFox/app/models"
	"github.com/ManuelReschke/CogniFox/internal/pkg/apperror"
)

func newSQLiteRepo(t *testing.T) (Repository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.WebhookEvent{}, &models.TestResult{}))
	return NewRepository(db), db
}

func TestRepository_UserLookupsAndMergeUpdates(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()

	u := registeredUser("u1")
	u.CustomerID = strPtr("cus_1")
	require.NoError(t, db.Create(u).Error)

	id, err := repo.FindUserIDByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.FindUserIDBySubscriptionID(ctx, "sub_missing")
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateUserFields(ctx, "u1", map[string]interface{}{
		"subscription_status":  models.SubscriptionStatusActive,
		"payment_completed":    true,
		"subscription_id":      "sub_1",
		"last_payment_success": &now,
	}))
	// Writing the same values again is not a missing user.
	require.NoError(t, repo.UpdateUserFields(ctx, "u1", map[string]interface{}{
		"subscription_status": models.SubscriptionStatusActive,
	}))

	got, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, got.SubscriptionStatus)
	assert.True(t, got.PaymentCompleted)
	assert.Equal(t, "sub_1", got.SubscriptionRef())
	assert.Equal(t, "cus_1", got.CustomerRef())
	assert.Equal(t, "u1@example.com", got.Email)

	err = repo.UpdateUserFields(ctx, "nobody", map[string]interface{}{"payment_completed": true})
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)

	_, err = repo.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)
}

func TestRepository_CreateUserIfNotExistsKeepsExisting(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	u := registeredUser("u1")
	u.SubscriptionStatus = models.SubscriptionStatusActive
	require.NoError(t, repo.CreateUserIfNotExists(ctx, u))
	require.NoError(t, repo.CreateUserIfNotExists(ctx, registeredUser("u1")))

	got, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, got.SubscriptionStatus)
}

func TestRepository_WebhookEventIdempotency(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()

	ev := func() *models.WebhookEvent {
		return &models.WebhookEvent{
			Provider:        models.BillingProviderStripe,
			ProviderEventID: "evt_1",
			EventType:       EventTypeCheckoutCompleted,
			PayloadJSON:     `{}`,
		}
	}

	created, err := repo.CreateWebhookEventIfNotExists(ctx, ev())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateWebhookEventIfNotExists(ctx, ev())
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.MarkWebhookProcessed(ctx, models.BillingProviderStripe, "evt_1", "boom"))
	var stored models.WebhookEvent
	require.NoError(t, db.Where("provider_event_id = ?", "evt_1").First(&stored).Error)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, "boom", stored.ProcessingError)

	require.NoError(t, repo.DeleteWebhookEvent(ctx, models.BillingProviderStripe, "evt_1"))
	created, err = repo.CreateWebhookEventIfNotExists(ctx, ev())
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRepository_DeleteTestResults(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()

	for _, uid := range []string{"u1", "u1", "u2"} {
		r, err := models.NewTestResult(uid, models.Games[0], 500, 1200)
		require.NoError(t, err)
		require.NoError(t, db.Create(r).Error)
	}

	require.NoError(t, repo.DeleteTestResults(ctx, "u1"))

	var count int64
	require.NoError(t, db.Model(&models.TestResult{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
