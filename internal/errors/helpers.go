package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewVKAPIError creates an error for a failed VK API call. VK fetch failures
// abort the sync cycle with zero progress, so they are always retryable on a
// later cycle.
func NewVKAPIError(method string, err error) *AppError {
	return WrapRetryable(err, ErrCodeVKAPI, fmt.Sprintf("VK %s call failed", method)).
		WithContext("method", method).
		WithUserMessage("VK is unavailable, will retry on the next check")
}

// NewTelegramAPIError creates an error for a failed Telegram API call with
// the HTTP status attached. 5xx and 429 responses are marked retryable.
func NewTelegramAPIError(method string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeTelegramAPI, fmt.Sprintf("Telegram %s call failed", method)).
		WithContext("method", method).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewNotConfiguredError creates the outcome error for a sync attempt against
// a slot that is missing required fields. No network is contacted in this case.
func NewNotConfiguredError(botIndex int) *AppError {
	return New(ErrCodeNotConfigured, fmt.Sprintf("bot slot %d is not fully configured", botIndex)).
		WithContext("bot_index", botIndex).
		WithUserMessage("This bot is not fully configured yet")
}

// NewDeliveryError creates a per-post delivery failure. Delivery failures are
// counted against the post and never retried by the engine.
func NewDeliveryError(postID int64, err error) *AppError {
	return Wrap(err, ErrCodeDeliveryFailed, fmt.Sprintf("delivery of post %d failed", postID)).
		WithContext("post_id", postID)
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}
