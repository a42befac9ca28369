package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSource represents upstream data source errors
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeStore represents graph store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeBuilder represents build pipeline errors
	ErrorTypeBuilder ErrorType = "builder"
	// ErrorTypeQuery represents query engine errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Builder Errors

// ErrNoSeedDrugs is returned when the seed stage discovers no candidates
var ErrNoSeedDrugs = NewBaseError(ErrorTypeBuilder, "no seed drug candidates discovered", nil)

// ErrNoReactionNodes is returned when label-reaction linking runs before any
// Reaction node exists
var ErrNoReactionNodes = NewBaseError(ErrorTypeBuilder, "no Reaction nodes in store; run the FAERS stage first", nil)

// Query Errors

// ErrStoreNotFound is returned when the KG database file does not exist
var ErrStoreNotFound = NewBaseError(ErrorTypeQuery, "knowledge graph database not found", nil)
