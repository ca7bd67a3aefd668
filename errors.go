package register

import (
	"github.com/goliatone/go-errors"
)

const (
	// TextCodeDuplicateUser marks username/channel uniqueness conflicts
	TextCodeDuplicateUser = "DUPLICATE_USER"
	// TextCodeUserNotFound marks operations against a missing record
	TextCodeUserNotFound = "USER_NOT_FOUND"
	// TextCodeIllegalUserState marks updates on accounts that never completed registration
	TextCodeIllegalUserState = "ILLEGAL_USER_STATE"
	// TextCodeReadOnlyField marks attempts to mutate write-once lifecycle stamps
	TextCodeReadOnlyField = "READ_ONLY_FIELD"
	// TextCodeInvalidToken marks encode inputs missing required fields
	TextCodeInvalidToken = "INVALID_TOKEN"
	// TextCodeHookRejected marks registration hook disapprovals
	TextCodeHookRejected = "HOOK_REJECTED"
)

// ErrDuplicateUser is returned when a username or preferred channel collides
// with an existing record.
var ErrDuplicateUser = errors.New("username or channel already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUser).
	WithCode(errors.CodeConflict)

// ErrUserNotFound is returned when an update targets a record that does not exist
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrIllegalUserState is returned when updating a user that never completed registration
var ErrIllegalUserState = errors.New("user has not completed registration", errors.CategoryConflict).
	WithTextCode(TextCodeIllegalUserState).
	WithCode(errors.CodeConflict)

// ErrReadOnlyField is returned when an update payload changes created,
// verified, or registered timestamps.
var ErrReadOnlyField = errors.New("lifecycle timestamps are read only", errors.CategoryBadInput).
	WithTextCode(TextCodeReadOnlyField).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is the error for empty inputs where a value is required
var ErrNoEmptyString = errors.New("value should not be an empty string", errors.CategoryBadInput)

// ErrMismatchedHashAndPassword is returned when password verification fails
var ErrMismatchedHashAndPassword = errors.New("mismatched password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// newInvalidTokenError reports a structurally invalid encode input, naming the
// missing field. This is a programmer error, not an external-input failure.
func newInvalidTokenError(field string) *errors.Error {
	return errors.New("invalid token: missing required field", errors.CategoryValidation).
		WithTextCode(TextCodeInvalidToken).
		WithMetadata(map[string]any{"field": field})
}

// newHookRejectedError surfaces a hook chain disapproval
func newHookRejectedError(hook, reason string) *errors.Error {
	return errors.New("registration rejected by hook", errors.CategoryValidation).
		WithTextCode(TextCodeHookRejected).
		WithMetadata(map[string]any{"hook": hook, "reason": reason})
}

// IsDuplicate checks for uniqueness conflicts
func IsDuplicate(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeDuplicateUser
}

// IsReadOnlyFieldError checks for write-once violations
func IsReadOnlyFieldError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeReadOnlyField
}

// IsIllegalState checks for updates against incomplete registrations
func IsIllegalState(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeIllegalUserState
}
