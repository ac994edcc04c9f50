package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the kind of error.
type Category string

const (
	CategoryNotReady        Category = "not-ready"
	CategoryInvalidArgument Category = "invalid-argument"
	CategoryNotFound        Category = "not-found"
	CategoryConfig          Category = "configuration"
	CategoryStartup         Category = "startup"
	CategoryRuntime         Category = "runtime"
	CategoryCLI             Category = "cli"
)

// DevError is a structured error with a code, a category, and a hint on how to fix it.
type DevError struct {
	// Code is a unique error identifier (e.g., "E100").
	Code string

	// Category is the error kind (not-ready, not-found, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DevError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DevError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DevError) WithSuggestion(s string) *DevError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DevError) WithDetail(d string) *DevError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail to the error.
func (e *DevError) WithDetailf(format string, args ...any) *DevError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *DevError) Wrap(err error) *DevError {
	e.Wrapped = err
	return e
}

// New creates a DevError from a registered error code.
func New(code string) *DevError {
	template, ok := registry[code]
	if !ok {
		return &DevError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DevError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new DevError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DevError {
	return &DevError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DevError.
// Errors that already carry a DevError are returned unchanged.
func FromError(err error, code string) *DevError {
	if err == nil {
		return nil
	}
	var de *DevError
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// CategoryOf returns the category of the first DevError in err's chain.
func CategoryOf(err error) (Category, bool) {
	var de *DevError
	if stderrors.As(err, &de) {
		return de.Category, true
	}
	return "", false
}

// HasCategory reports whether any DevError in err's chain has the given category.
func HasCategory(err error, category Category) bool {
	for err != nil {
		if de, ok := err.(*DevError); ok && de.Category == category {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// HasCode reports whether any DevError in err's chain has the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		if de, ok := err.(*DevError); ok && de.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
