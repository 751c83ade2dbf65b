// Package errors defines the failure taxonomy of the template store.
//
// Every failure surfaced by the loader is a *StoreError carrying a Kind, so
// callers such as the HTTP layer can map failures to status codes without
// inspecting messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind categorizes a store failure.
type Kind string

const (
	KindInvalidIdentifier       Kind = "invalid_identifier"
	KindTemplateNotFound        Kind = "template_not_found"
	KindInvalidMetadata         Kind = "invalid_metadata"
	KindInvalidExplanations     Kind = "invalid_explanations"
	KindInvalidProgramMap       Kind = "invalid_program_map"
	KindInvalidPrecomputedState Kind = "invalid_precomputed_state"
	KindInvalidFunctionSpecs    Kind = "invalid_function_specs"
	KindStoreUnavailable        Kind = "store_unavailable"
)

// StoreError is a structured error with the template and field it concerns.
type StoreError struct {
	Kind       Kind
	TemplateID string
	// Field is the Template field whose document failed, empty otherwise
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))

	if e.TemplateID != "" {
		parts = append(parts, "template:"+e.TemplateID)
	}

	if e.Field != "" {
		parts = append(parts, "field:"+e.Field)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *StoreError of the same kind.
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}

	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidIdentifier       = &StoreError{Kind: KindInvalidIdentifier}
	ErrTemplateNotFound        = &StoreError{Kind: KindTemplateNotFound}
	ErrInvalidMetadata         = &StoreError{Kind: KindInvalidMetadata}
	ErrInvalidExplanations     = &StoreError{Kind: KindInvalidExplanations}
	ErrInvalidProgramMap       = &StoreError{Kind: KindInvalidProgramMap}
	ErrInvalidPrecomputedState = &StoreError{Kind: KindInvalidPrecomputedState}
	ErrInvalidFunctionSpecs    = &StoreError{Kind: KindInvalidFunctionSpecs}
	ErrStoreUnavailable        = &StoreError{Kind: KindStoreUnavailable}
)

// NewInvalidIdentifier reports an unsafe or malformed template id.
func NewInvalidIdentifier(id string, cause error) *StoreError {
	return &StoreError{
		Kind:       KindInvalidIdentifier,
		TemplateID: id,
		Message:    "invalid template identifier",
		Cause:      cause,
	}
}

// NewTemplateNotFound reports a template whose source file is absent.
func NewTemplateNotFound(id string, cause error) *StoreError {
	return &StoreError{
		Kind:       KindTemplateNotFound,
		TemplateID: id,
		Message:    "template not found",
		Cause:      cause,
	}
}

// NewStoreUnavailable reports a store that could not be read.
func NewStoreUnavailable(message string, cause error) *StoreError {
	return &StoreError{
		Kind:    KindStoreUnavailable,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidField reports a document that could not be read, parsed or
// validated. field is the Template field name, e.g. "programMap".
func NewInvalidField(kind Kind, id, field string, cause error) *StoreError {
	return &StoreError{
		Kind:       kind,
		TemplateID: id,
		Field:      field,
		Message:    "invalid " + field,
		Cause:      cause,
	}
}

// KindOf returns the kind of the first StoreError in err's chain, or "".
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}

	return ""
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsInvalidDocument reports whether err is one of the per-field InvalidX
// kinds, meaning the store content itself is corrupt.
func IsInvalidDocument(err error) bool {
	switch KindOf(err) {
	case KindInvalidMetadata,
		KindInvalidExplanations,
		KindInvalidProgramMap,
		KindInvalidPrecomputedState,
		KindInvalidFunctionSpecs:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error to the status code an HTTP handler should use.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidIdentifier:
		return http.StatusBadRequest
	case KindTemplateNotFound:
		return http.StatusNotFound
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
