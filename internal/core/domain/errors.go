package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedContentType indicates no extraction strategy exists for a content type
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrMalformedMessage indicates a notification payload could not be decoded
	ErrMalformedMessage = errors.New("malformed message")

	// ErrConnectorNotFound indicates the connector is not registered
	ErrConnectorNotFound = errors.New("connector not found")

	// ErrServiceUnavailable indicates a downstream service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrSubscriptionClosed indicates the notification subscription has ended
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// ParseError is returned when a blob cannot be turned into content chunks.
type ParseError struct {
	Filename    string
	ContentType string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Filename, e.ContentType, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError wraps err with the document it was raised for.
func NewParseError(filename, contentType string, err error) *ParseError {
	return &ParseError{Filename: filename, ContentType: contentType, Err: err}
}
