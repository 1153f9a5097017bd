package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	AuthProviderPassword = "password"
	AuthProviderGoogle   = "google"
)

// Subscription states persisted on a user record. Stripe may additionally
// report "canceled", "incomplete", "incomplete_expired" or "paused", which are
// mirrored verbatim on subscription updates.
const (
	SubscriptionStatusPaymentRequired = "payment_required"
	SubscriptionStatusTrialing        = "trialing"
	SubscriptionStatusActive          = "active"
	SubscriptionStatusPastDue         = "past_due"
	SubscriptionStatusUnpaid          = "unpaid"
	SubscriptionStatusInactive        = "inactive"
	SubscriptionStatusCancelled       = "cancelled"
)

// User is the per-account record keyed by the identity provider's uid.
// SubscriptionStatus and PaymentCompleted are owned by the billing service.
type User struct {
	ID                    string     `gorm:"primaryKey;type:varchar(128)" json:"id" validate:"required,max=128"`
	Email                 string     `gorm:"type:varchar(200);index" json:"email" validate:"required,email,max=200"`
	AuthProvider          string     `gorm:"type:varchar(20);not null;default:'password'" json:"auth_provider" validate:"oneof=password google"`
	CustomerID            *string    `gorm:"type:varchar(191);index" json:"customer_id"`
	SubscriptionID        *string    `gorm:"type:varchar(191);index" json:"subscription_id"`
	SubscriptionStatus    string     `gorm:"type:varchar(32);not null;default:'payment_required';index" json:"subscription_status"`
	PaymentCompleted      bool       `gorm:"not null;default:false" json:"payment_completed"`
	LastCheckoutSessionID string     `gorm:"type:varchar(191);default:'';index" json:"-"`
	LastCheckoutAt        *time.Time `gorm:"type:timestamp;default:null" json:"last_checkout_at,omitempty"`
	LastPaymentSuccess    *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_success,omitempty"`
	LastPaymentFailure    *time.Time `gorm:"type:timestamp;default:null" json:"last_payment_failure,omitempty"`
	TrialEndWarning       *time.Time `gorm:"type:timestamp;default:null" json:"trial_end_warning,omitempty"`
	SubscriptionDeletedAt *time.Time `gorm:"type:timestamp;default:null" json:"subscription_deleted_at,omitempty"`
	LastCheckoutExpired   *time.Time `gorm:"type:timestamp;default:null" json:"last_checkout_expired,omitempty"`
	CancelledAt           *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	DeletedAt             *time.Time `gorm:"type:timestamp;default:null" json:"deleted_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds a freshly registered record. Billing state always starts at
// payment_required regardless of what the caller asks for.
func NewUser(id, email, authProvider string) (*User, error) {
	provider := strings.ToLower(strings.TrimSpace(authProvider))
	if provider == "" {
		provider = AuthProviderPassword
	}

	u := &User{
		ID:                 strings.TrimSpace(id),
		Email:              strings.TrimSpace(email),
		AuthProvider:       provider,
		SubscriptionStatus: SubscriptionStatusPaymentRequired,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// CustomerRef returns the stored processor customer id or "".
func (u *User) CustomerRef() string {
	if u.CustomerID == nil {
		return ""
	}
	return *u.CustomerID
}

// SubscriptionRef returns the stored processor subscription id or "".
func (u *User) SubscriptionRef() string {
	if u.SubscriptionID == nil {
		return ""
	}
	return *u.SubscriptionID
}
