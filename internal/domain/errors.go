package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "read", "poll")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError is returned for bad user input. No state is changed when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BackendExecutionError wraps a failed call to the real trading backend.
// The executor converts it into a simulated fill and keeps the message for display.
type BackendExecutionError struct {
	Op  string // "open" or "close"
	Err error
}

func (e *BackendExecutionError) Error() string {
	return "backend " + e.Op + " failed: " + e.Err.Error()
}

func (e *BackendExecutionError) Unwrap() error {
	return e.Err
}

var (
	// ErrAlreadyOpen is returned when a position already exists for the symbol.
	ErrAlreadyOpen = errors.New("position already open")

	// ErrNoOpenPosition is returned when closing a symbol without a position.
	ErrNoOpenPosition = errors.New("no open position")

	// ErrExecutionPending is returned when an open/close is already in flight for the symbol.
	ErrExecutionPending = errors.New("execution already pending")

	// ErrInsufficientCapital is returned when a commit exceeds available capital.
	ErrInsufficientCapital = errors.New("insufficient capital")

	// ErrFeedUnavailable is internal to the price feed and is never returned to callers.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrBackendNotConfigured is returned by the trading backend when no credentials are set.
	ErrBackendNotConfigured = errors.New("trading backend not configured")

	// ErrInvalidSymbol is returned when a symbol is empty or malformed. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
