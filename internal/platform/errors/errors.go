// Package errors provides the structured error taxonomy shared by the
// command dispatcher, the event transport and the watcher registry.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error for metrics and logging.
type ErrorType string

const (
	// TypeMalformedRequest indicates the request body was not a command envelope.
	TypeMalformedRequest ErrorType = "malformed_request"
	// TypeUnknownCommand indicates no handler is registered under the name.
	TypeUnknownCommand ErrorType = "unknown_command"
	// TypeMalformedParams indicates the params did not decode into the handler's input.
	TypeMalformedParams ErrorType = "malformed_params"
	// TypeHandler indicates the command handler itself failed.
	TypeHandler ErrorType = "handler"
	// TypeTransport indicates a WebSocket read or write failed.
	TypeTransport ErrorType = "transport"
	// TypeWatcherStart indicates a resource watcher could not be started.
	TypeWatcherStart ErrorType = "watcher_start"
)

// Error represents a structured error with type, message, and context.
// Message is the client-facing text; Cause stays server-side.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsProtocol reports whether the error was raised before any handler ran.
func (e *Error) IsProtocol() bool {
	switch e.Type {
	case TypeMalformedRequest, TypeUnknownCommand, TypeMalformedParams:
		return true
	default:
		return false
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// MalformedRequest reports a body that is not a {command, params} object.
func MalformedRequest(cause error) *Error {
	msg := "malformed request"
	if cause != nil {
		msg = fmt.Sprintf("malformed request: %v", cause)
	}
	return newError(TypeMalformedRequest, msg, cause)
}

// UnknownCommand reports a command name with no registered handler.
func UnknownCommand(name string) *Error {
	return newError(TypeUnknownCommand, fmt.Sprintf("Command %s not found!", name), nil).
		WithContext("command", name)
}

// MalformedParams reports params that could not be decoded or validated.
func MalformedParams(cause error) *Error {
	return newError(TypeMalformedParams, fmt.Sprintf("malformed params: %v", cause), cause)
}

// HandlerFailure wraps an error returned by a command handler. The handler's
// own message becomes the client-facing text.
func HandlerFailure(cause error) *Error {
	msg := "command failed"
	if cause != nil {
		msg = cause.Error()
	}
	return newError(TypeHandler, msg, cause)
}

// HandlerMessage creates a handler failure with a fixed message.
func HandlerMessage(message string) *Error {
	return newError(TypeHandler, message, nil)
}

// TransportFailure wraps a WebSocket read or write error.
func TransportFailure(op string, cause error) *Error {
	return newError(TypeTransport, fmt.Sprintf("websocket %s failed", op), cause).
		WithContext("op", op)
}

// WatcherStart reports that a watcher for resourceID could not be started.
func WatcherStart(resourceID string, cause error) *Error {
	return newError(TypeWatcherStart, fmt.Sprintf("failed to watch project %s: %v", resourceID, cause), cause).
		WithContext("resource_id", resourceID)
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// AsStructuredError converts any error into a structured Error.
// If err already wraps an *Error, that error is returned unchanged.
// Otherwise it is treated as a handler failure.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return HandlerFailure(err)
}

// IsType reports whether err wraps an *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var structuredErr *Error
	return errors.As(err, &structuredErr) && structuredErr.Type == t
}
