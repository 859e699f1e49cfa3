// Package mamori provides a Go client for the Mamori crisis detection and
// intervention API.
package mamori

import (
	"errors"
	"fmt"
)

// Error represents an error from the Mamori API with the HTTP status code
// and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("mamori: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsInvalidInput returns true if the error is a 400.
func IsInvalidInput(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 400
	}
	return false
}

// IsConflict returns true if the error is a 409 (already resolved or
// ownership mismatch).
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 409
	}
	return false
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}
