// Package errkind classifies the failures a resource list can run into.
//
// Three kinds are distinguished:
//
//   - Network errors: a fetch was rejected. They are retryable by asking the cache
//     for the same key again.
//   - Validation errors: malformed input, typically from the URL. They are recovered
//     by defaulting or clamping and only ever logged.
//   - Mutation errors: a write failed. They are surfaced to the user and the cache is
//     left as it was before the write.
//
// All kinds are go-errors values, so categories, text codes and metadata are
// available to the presentation layer.
package errkind

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeNetwork    = "NETWORK_ERROR"
	TextCodeValidation = "VALIDATION_ERROR"
	TextCodeMutation   = "MUTATION_ERROR"
	TextCodeSuperseded = "SUPERSEDED"
)

// RetryDelay is the base delay advertised on network errors.
const RetryDelay = 500 * time.Millisecond

// Network wraps a rejected fetch for the given cache key. requestID correlates the
// error with the flight that produced it.
func Network(cause error, key, requestID string) *goerrors.RetryableError {
	if cause == nil {
		return nil
	}
	err := goerrors.WrapRetryable(cause, goerrors.CategoryExternal, "fetch failed").
		WithRetryDelay(RetryDelay).
		WithTextCode(TextCodeNetwork).
		WithMetadata(map[string]any{"key": key})
	if requestID != "" {
		err.BaseError.WithRequestID(requestID)
	}
	return err
}

// Mutation wraps a failed write against resource. When cause is already a go-errors
// value its category (for example not_found from the API) is kept.
func Mutation(cause error, resource string) *goerrors.Error {
	if cause == nil {
		return nil
	}
	return goerrors.Wrap(cause, goerrors.CategoryOperation, "mutation failed").
		WithTextCode(TextCodeMutation).
		WithMetadata(map[string]any{"resource": resource})
}

// Validation builds a validation error from recovered field problems.
func Validation(message string, fields ...goerrors.FieldError) *goerrors.Error {
	return goerrors.NewValidation(message, fields...).WithTextCode(TextCodeValidation)
}

// Field is shorthand for a single field problem.
func Field(field, message string, value any) goerrors.FieldError {
	return goerrors.FieldError{Field: field, Message: message, Value: value}
}

// IsNetwork reports whether err is a fetch failure.
func IsNetwork(err error) bool {
	return hasTextCode(err, TextCodeNetwork)
}

// IsMutation reports whether err is a failed write.
func IsMutation(err error) bool {
	return hasTextCode(err, TextCodeMutation)
}

// IsValidation reports whether err carries validation problems.
func IsValidation(err error) bool {
	return hasTextCode(err, TextCodeValidation) || goerrors.IsValidation(err)
}

// IsSuperseded reports whether err signals a response that lost to a newer request.
func IsSuperseded(err error) bool {
	return hasTextCode(err, TextCodeSuperseded)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var retryable *goerrors.RetryableError
	if goerrors.As(err, &retryable) && retryable.BaseError != nil && retryable.BaseError.TextCode == code {
		return true
	}

	var e *goerrors.Error
	if goerrors.As(err, &e) && e.TextCode == code {
		return true
	}
	return false
}
