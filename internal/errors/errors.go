package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Base error types
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTimeout          = errors.New("timeout")
	ErrConnectionFailed = errors.New("connection failed")
	ErrDecodeFailed     = errors.New("decode failed")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeDecode     ErrorType = "decode"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

// PollError is a structured error for upstream polling operations.
type PollError struct {
	Type       ErrorType
	Op         string // Operation that failed (e.g., "login", "fetch_drives")
	Err        error  // Underlying error
	StatusCode int    // HTTP status code if applicable
	Timestamp  time.Time
	Retryable  bool
}

func (e *PollError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is matching against the base error types.
func (e *PollError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrUnauthorized:
		return e.Type == ErrorTypeAuth
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection
	case ErrDecodeFailed:
		return e.Type == ErrorTypeDecode
	}

	return errors.Is(e.Err, target)
}

// NewPollError creates a new PollError
func NewPollError(errorType ErrorType, op string, err error) *PollError {
	return &PollError{
		Type:      errorType,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType),
	}
}

// WithStatusCode adds the HTTP status code and adjusts retryability.
func (e *PollError) WithStatusCode(code int) *PollError {
	e.StatusCode = code
	if code >= 500 || code == 429 || code == 408 {
		e.Retryable = true
	} else if code >= 400 && code < 500 {
		e.Retryable = false
	}
	return e
}

func isRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeConnection, ErrorTypeTimeout:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound:
		return false
	default:
		return true
	}
}

// WrapConnectionError wraps a connection error with context. The concrete
// type is returned so callers can chain WithStatusCode.
func WrapConnectionError(op string, err error) *PollError {
	return NewPollError(ErrorTypeConnection, op, err)
}

// WrapAuthError wraps an authentication error with context.
func WrapAuthError(op string, err error) *PollError {
	return NewPollError(ErrorTypeAuth, op, err)
}

// WrapDecodeError wraps an unexpected-shape error with context.
func WrapDecodeError(op string, err error) *PollError {
	return NewPollError(ErrorTypeDecode, op, err)
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	var pollErr *PollError
	if errors.As(err, &pollErr) {
		return pollErr.Retryable
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed)
}

// IsAuthError checks if an error indicates a rejected session or credentials.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var pollErr *PollError
	if errors.As(err, &pollErr) {
		if pollErr.Type == ErrorTypeAuth {
			return true
		}
		if pollErr.StatusCode == 401 || pollErr.StatusCode == 403 {
			return true
		}
	}

	if errors.Is(err, ErrUnauthorized) {
		return true
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "authentication failed") ||
		strings.Contains(errMsg, "401") ||
		strings.Contains(errMsg, "unauthorized")
}

// TypeOf returns the PollError category, or internal for anything else.
func TypeOf(err error) ErrorType {
	var pollErr *PollError
	if errors.As(err, &pollErr) {
		return pollErr.Type
	}
	return ErrorTypeInternal
}
