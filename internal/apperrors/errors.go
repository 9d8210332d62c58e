// Package apperrors defines the error kinds surfaced by the analysis
// pipeline and how each one maps onto an HTTP status.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnsupportedFormat   Kind = "unsupported_format"
	KindExtractionFailed    Kind = "extraction_failed"
	KindStorageWriteFailed  Kind = "storage_write_failed"
	KindStorageReadFailed   Kind = "storage_read_failed"
	KindStorageDeleteFailed Kind = "storage_delete_failed"
	KindAuthFailed          Kind = "auth_failed"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindAIAnalysisFailed    Kind = "ai_analysis_failed"
	KindInvalidInput        Kind = "invalid_input"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// Error carries a Kind, a client-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func UnsupportedFormat(filename string) *Error {
	return New(KindUnsupportedFormat, fmt.Sprintf("unsupported file type: %q", filename), nil)
}

// ExtractionFailed reports a parser failure for a given format.
func ExtractionFailed(format string, cause error) *Error {
	return New(KindExtractionFailed, fmt.Sprintf("could not extract text from %s file", format), cause)
}

func StorageWriteFailed(cause error) *Error {
	return New(KindStorageWriteFailed, "failed to store the uploaded file", cause)
}

func StorageReadFailed(cause error) *Error {
	return New(KindStorageReadFailed, "failed to read the stored file", cause)
}

func StorageDeleteFailed(cause error) *Error {
	return New(KindStorageDeleteFailed, "failed to delete the stored file", cause)
}

func AIAnalysisFailed(cause error) *Error {
	return New(KindAIAnalysisFailed, "AI analysis failed", cause)
}

func NotFound(what string) *Error {
	return New(KindNotFound, what+" not found", nil)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, nil)
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to the status code returned to clients.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnsupportedFormat, KindExtractionFailed, KindInvalidInput, KindConflict:
		return http.StatusBadRequest
	case KindAuthFailed:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client. Internal
// errors never leak their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
