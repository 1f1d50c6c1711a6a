// internal/models/errors.go
package models

import "errors"

// Error taxonomy shared by every layer. Callers wrap these with fmt.Errorf
// and check them with errors.Is.
var (
	// ErrInvalidInput marks bad profile fields or an empty chat message.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage marks an unreadable or malformed persisted record.
	ErrStorage = errors.New("storage error")

	// ErrServiceUnavailable marks a failed or timed out advisor call.
	// It is always retryable.
	ErrServiceUnavailable = errors.New("advice service unavailable")

	// ErrProfileNotFound is the absent-profile state. It is distinct from
	// ErrStorage: no profile has been created yet.
	ErrProfileNotFound = errors.New("health profile not found")

	// ErrArchiveDisabled is returned when no conversation archive is configured.
	ErrArchiveDisabled = errors.New("conversation archive disabled")
)
