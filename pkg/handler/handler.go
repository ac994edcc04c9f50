// Package handler adapts request handlers to the shape the server runtime
// mounts.
//
// A Handler receives an Event and returns an error. Define wraps a plain
// function, FromMiddleware wraps an existing http.Handler, and ToHTTP turns
// a Handler back into an http.Handler, mapping devstack error categories to
// status codes.
package handler

import (
	"context"
	"net/http"

	"github.com/vango-dev/devstack/internal/errors"
)

// Event is one incoming request.
type Event struct {
	Writer  http.ResponseWriter
	Request *http.Request
}

// Context returns the request context.
func (e *Event) Context() context.Context {
	return e.Request.Context()
}

// Handler handles one event.
type Handler interface {
	ServeEvent(e *Event) error
}

// Func adapts a function to Handler.
type Func func(e *Event) error

// ServeEvent calls f.
func (f Func) ServeEvent(e *Event) error {
	return f(e)
}

// Define wraps fn as a Handler.
func Define(fn func(e *Event) error) Handler {
	return Func(fn)
}

// FromMiddleware wraps a plain http.Handler. The wrapped handler writes its
// own response and never returns an error.
func FromMiddleware(h http.Handler) Handler {
	return Func(func(e *Event) error {
		h.ServeHTTP(e.Writer, e.Request)
		return nil
	})
}

// ErrorFunc writes the response for a handler error.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// ToHTTP adapts h to an http.Handler. Errors are passed to onError; a nil
// onError uses DefaultError.
func ToHTTP(h Handler, onError ErrorFunc) http.Handler {
	if onError == nil {
		onError = DefaultError
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.ServeEvent(&Event{Writer: w, Request: r}); err != nil {
			onError(w, r, err)
		}
	})
}

// DefaultError writes err as plain text with StatusCode(err).
func DefaultError(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, err.Error(), StatusCode(err))
}

// StatusCode maps an error to an HTTP status by its devstack category.
func StatusCode(err error) int {
	cat, ok := errors.CategoryOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch cat {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryInvalidArgument:
		return http.StatusBadRequest
	case errors.CategoryNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
