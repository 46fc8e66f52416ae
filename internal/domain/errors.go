package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeUnidentifiedImage ErrorType = "unidentified_image"
	ErrorTypeUnreadableSource  ErrorType = "unreadable_source"
	ErrorTypeInvalidResizeSpec ErrorType = "invalid_resize_spec"
	ErrorTypeRequestFormat     ErrorType = "request_format"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeIO                ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func UnsupportedFormatError(message string, err error) *DomainError {
	return NewError(ErrorTypeUnsupportedFormat, message, err)
}

func UnidentifiedImageError(message string, err error) *DomainError {
	return NewError(ErrorTypeUnidentifiedImage, message, err)
}

func UnreadableSourceError(message string, err error) *DomainError {
	return NewError(ErrorTypeUnreadableSource, message, err)
}

func InvalidResizeSpecError(message string, err error) *DomainError {
	return NewError(ErrorTypeInvalidResizeSpec, message, err)
}

func RequestFormatError(message string, err error) *DomainError {
	return NewError(ErrorTypeRequestFormat, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// TypeOf returns the type of the first DomainError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err's chain contains a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsSkippable reports whether err only affects the document it came from. Batch runs log
// these and move on; anything else terminates the worker that hit it.
func IsSkippable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeUnsupportedFormat, ErrorTypeUnidentifiedImage, ErrorTypeUnreadableSource:
		return true
	default:
		return false
	}
}
