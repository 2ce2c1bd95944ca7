package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrReservedAttribute is returned when a category field or an entity
	// attribute reuses one of the core entity keys.
	ErrReservedAttribute = errors.New("reserved attribute name")
	// ErrEdgeNotAllowed is returned for an edge type not listed for a category pair.
	ErrEdgeNotAllowed = errors.New("edge type not allowed between categories")
	// ErrScoreOutOfRange is returned when a score field is outside [0, 1].
	ErrScoreOutOfRange = errors.New("score must be between 0.0 and 1.0")
	// ErrUnknownCategory is returned for a category that was never registered.
	ErrUnknownCategory = errors.New("unknown entity category")
	// ErrUnknownEdgeType is returned for an edge type that was never registered.
	ErrUnknownEdgeType = errors.New("unknown edge type")
	// ErrInvalidValue is returned when a value does not match its field kind.
	ErrInvalidValue = errors.New("invalid field value")
	// ErrInvalidSchema is returned for malformed category or edge type definitions.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrFrozen is returned when registering after Freeze.
	ErrFrozen = errors.New("registry is frozen")
)

// ValidationError reports which field failed and why. Err is one of the
// sentinel errors above.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v (got %v)", e.Field, e.Err, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, value any, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Err: err}
}
