package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound - a mutation targeted a record that has not been created yet.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyExists - a conditional create hit an existing key.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNoMessages - the queue has no visible messages right now.
	ErrNoMessages = errors.New("no messages available")

	// ErrMalformedEnvelope - the transport wrapper or the inner envelope
	// could not be decoded.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// ValidationError marks a payload that can never be processed successfully,
// no matter how often it is redelivered. Whether a consumer swallows it or
// lets it ride to the dead-letter queue is harness policy.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

func NewValidation(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigurationError marks a bad declarative setup (e.g. a malformed
// subscription filter). Raised at wiring time, never at message time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s", e.Reason)
}

func NewConfiguration(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
