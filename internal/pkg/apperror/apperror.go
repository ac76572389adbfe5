package apperror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindConfiguration  Kind = "configuration_error"
	KindAuthentication Kind = "unauthorized"
	KindAuthorization  Kind = "forbidden"
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindUpstream       Kind = "upstream_error"
	KindInternal       Kind = "internal_server_error"
)

// Error is the application error carried from components to the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	// Fields lists missing keys for configuration errors and offending
	// input fields for validation errors.
	Fields []string
	// Status is the upstream HTTP status for KindUpstream.
	Status  int
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return fiber.StatusUnauthorized
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindUpstream:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Configuration reports missing configuration. All missing keys are named.
func Configuration(missing ...string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: "missing required configuration: " + strings.Join(missing, ", "),
		Fields:  missing,
	}
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// Validation reports bad input. When fields are given and message is empty
// the message enumerates them.
func Validation(message string, fields ...string) *Error {
	if message == "" && len(fields) > 0 {
		message = strings.Join(fields, ", ") + " are required"
		if len(fields) == 1 {
			message = fields[0] + " is required"
		}
	}
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Upstream wraps a non-2xx answer from an external service.
func Upstream(service string, status int, details any) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("%s request failed with status %d", service, status),
		Status:  status,
		Details: details,
	}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
