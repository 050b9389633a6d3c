package helpers

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type QuoteProxyError struct {
	Message string
	Cause   error
}

func (e *QuoteProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *QuoteProxyError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As at the HTTP boundary
type ValidationError struct{ QuoteProxyError }
type RateLimitedError struct{ QuoteProxyError }
type NetworkError struct{ QuoteProxyError }
type UpstreamShapeError struct{ QuoteProxyError }
type StorageError struct{ QuoteProxyError }

// UpstreamStatusError is a non-2xx, non-429 answer from the provider.
type UpstreamStatusError struct {
	QuoteProxyError
	StatusCode int
}

// ErrQuoteNotFound is returned by cache stores when no row exists for a key.
var ErrQuoteNotFound = errors.New("cached quote not found")

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewValidationError(message string) *ValidationError {
	return &ValidationError{QuoteProxyError{Message: message}}
}

func NewRateLimitedError(message string, cause error) *RateLimitedError {
	return &RateLimitedError{QuoteProxyError{Message: message, Cause: cause}}
}

func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{QuoteProxyError{Message: message, Cause: cause}}
}

func NewUpstreamShapeError(message string, cause error) *UpstreamShapeError {
	return &UpstreamShapeError{QuoteProxyError{Message: message, Cause: cause}}
}

func NewStorageError(message string, cause error) *StorageError {
	return &StorageError{QuoteProxyError{Message: message, Cause: cause}}
}

func NewUpstreamStatusError(statusCode int) *UpstreamStatusError {
	return &UpstreamStatusError{
		QuoteProxyError: QuoteProxyError{Message: fmt.Sprintf("yahoo responded with status %d", statusCode)},
		StatusCode:      statusCode,
	}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsRateLimited(err error) bool {
	var target *RateLimitedError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsUpstreamShape(err error) bool {
	var target *UpstreamShapeError
	return errors.As(err, &target)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

// IsServerError reports a 5xx UpstreamStatusError.
func IsServerError(err error) bool {
	var target *UpstreamStatusError
	return errors.As(err, &target) && target.StatusCode >= 500
}
