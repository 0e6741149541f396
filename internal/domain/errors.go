package domain

import "errors"

// Domain errors
var (
	ErrMissingPlayerID    = errors.New("player id is required")
	ErrUnknownSessionType = errors.New("unknown session type")
	ErrInvalidWaitTime    = errors.New("max wait time must be positive")
	ErrEntryNotFound      = errors.New("player not found in queue")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}

// IsValidationError checks if an error came from request validation
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingPlayerID) ||
		errors.Is(err, ErrUnknownSessionType) ||
		errors.Is(err, ErrInvalidWaitTime) ||
		errors.Is(err, ErrInvalidRequest)
}
