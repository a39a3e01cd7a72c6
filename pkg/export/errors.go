package export

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies an export failure.
type Code string

const (
	ErrUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	ErrInvalidOptions    Code = "INVALID_OPTIONS"
	ErrProcessing        Code = "PROCESSING_ERROR"
	ErrNetwork           Code = "NETWORK_ERROR"
	ErrTimeout           Code = "TIMEOUT"
	ErrMemory            Code = "MEMORY_ERROR"
	ErrPermission        Code = "PERMISSION_ERROR"
	ErrCancelled         Code = "CANCELLED"
	ErrConflict          Code = "CONFLICT"
	ErrUnknown           Code = "UNKNOWN"
)

// Error is the single failure type an export run settles with. It carries a
// machine code, a human-readable message and optional advisory remediation
// strings. Remediation is informational text, never a behavior branch.
type Error struct {
	Code        Code
	Message     string
	Details     string
	Remediation []string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches errors by code so errors.Is works with sentinel values.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// newError builds an Error with the advisory remediation for its code.
func newError(code Code, message string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Remediation: remediationFor(code),
		cause:       cause,
	}
}

// Classify wraps an arbitrary failure into an *Error. Errors that already
// carry a code pass through unchanged; everything else is classified by
// keyword match on the failure text.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var exportErr *Error
	if errors.As(err, &exportErr) {
		return exportErr
	}
	return newError(codeFromKeywords(err.Error()), err.Error(), err)
}

func codeFromKeywords(msg string) Code {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "cancel"):
		return ErrCancelled
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return ErrTimeout
	case strings.Contains(lower, "memory") || strings.Contains(lower, "allocation"):
		return ErrMemory
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection") || strings.Contains(lower, "fetch"):
		return ErrNetwork
	case strings.Contains(lower, "permission") || strings.Contains(lower, "denied") || strings.Contains(lower, "not allowed"):
		return ErrPermission
	case strings.Contains(lower, "codec") || strings.Contains(lower, "format") || strings.Contains(lower, "unsupported"):
		return ErrUnsupportedFormat
	case strings.Contains(lower, "encode") || strings.Contains(lower, "capture") || strings.Contains(lower, "frame"):
		return ErrProcessing
	default:
		return ErrUnknown
	}
}

func remediationFor(code Code) []string {
	switch code {
	case ErrUnsupportedFormat:
		return []string{
			"Try a different video codec or container",
			"Lower the resolution or bitrate",
		}
	case ErrInvalidOptions:
		return []string{"Check the export options against the documented ranges"}
	case ErrMemory:
		return []string{
			"Lower the resolution or frame rate",
			"Close other applications to free memory",
		}
	case ErrNetwork:
		return []string{"Check the network connection and retry"}
	case ErrTimeout:
		return []string{"Retry the export", "Shorten the timeline"}
	case ErrProcessing:
		return []string{"Retry the export", "Simplify the timeline content"}
	case ErrPermission:
		return []string{"Grant the required host permissions"}
	default:
		return nil
	}
}
