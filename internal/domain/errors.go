package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy of the query and resolution layers. Every failure a core
// operation can surface wraps one of these sentinels, so the HTTP layer can
// classify with errors.Is without inspecting message text.
var (
	// ErrInvalidColumn marks a caller-supplied filter column that is not a
	// member of the current, schema-derived allowlist.
	ErrInvalidColumn = errors.New("invalid filter column")

	// ErrSourceUnavailable marks a configured data source that cannot be
	// opened at all. Distinct from a source that opened with an empty
	// schema, and from a missing individual record.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotFound marks a specific identifier with no corresponding record
	// or file.
	ErrNotFound = errors.New("not found")

	// ErrSchemaMismatch marks a reachable source in which no expected
	// identifier-like or path-like column could be detected. This is a
	// configuration problem, reported distinctly from ErrNotFound.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Error codes carried in HTTP error envelopes.
const (
	CodeInvalidColumn     = "INVALID_COLUMN"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeNotFound          = "NOT_FOUND"
	CodeSchemaMismatch    = "SCHEMA_MISMATCH"
	CodeInternalError     = "INTERNAL_ERROR"
)

// CodeFor maps a core error to its envelope code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidColumn):
		return CodeInvalidColumn
	case errors.Is(err, ErrSourceUnavailable):
		return CodeSourceUnavailable
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrSchemaMismatch):
		return CodeSchemaMismatch
	default:
		return CodeInternalError
	}
}

// APIError is the standardized error envelope returned by the HTTP layer.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates an APIError with the current timestamp.
func NewAPIError(code, message, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
