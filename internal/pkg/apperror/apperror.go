// Package apperror holds the error taxonomy shared by the billing service and
// the HTTP controllers.
package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrAuthentication  = errors.New("authentication failed")
	ErrForbidden       = errors.New("credential does not match requested user")
	ErrValidation      = errors.New("validation failed")
	ErrSignature       = errors.New("webhook signature verification failed")
	ErrExternalService = errors.New("external service failure")
	ErrUserNotFound    = errors.New("user not found")
	ErrPaymentRequired = errors.New("subscription required")
)

// Status maps an error to the HTTP status code the API responds with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSignature):
		return http.StatusBadRequest
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to API callers. External
// failures are reported generically.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrSignature):
		return "invalid_signature"
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrPaymentRequired):
		return "subscription_required"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "internal_server_error"
	}
}
