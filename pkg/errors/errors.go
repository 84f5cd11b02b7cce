package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed node or relationship construction
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeExtraction represents unparseable LLM extraction output
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeQueryBuild represents input that cannot be safely embedded in a statement
	ErrorTypeQueryBuild ErrorType = "query_build"
	// ErrorTypePersistence represents graph engine execution failures
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeResultShape represents engine rows that do not match the expected column contract
	ErrorTypeResultShape ErrorType = "result_shape"
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

// ValidationError is returned when a node or relationship value fails its
// property schema (empty required field, enum value out of range).
type ValidationError struct {
	*BaseError
	Field string
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("%s: %s", field, reason), nil),
		Field:     field,
	}
}

// ExtractionParseError is returned when the LLM's extraction output cannot be
// interpreted. It never propagates past the interpreter; callers absorb it
// into an empty entity set.
type ExtractionParseError struct {
	*BaseError
}

func NewExtractionParse(reason string, err error) *ExtractionParseError {
	return &ExtractionParseError{
		BaseError: NewBaseError(ErrorTypeExtraction, reason, err),
	}
}

// QueryBuildError is returned when a parameter cannot be safely escaped into
// statement text. The write is aborted before anything reaches the engine.
type QueryBuildError struct {
	*BaseError
	Param string
}

func NewQueryBuild(param, reason string) *QueryBuildError {
	return &QueryBuildError{
		BaseError: NewBaseError(ErrorTypeQueryBuild, fmt.Sprintf("cannot build statement from %s: %s", param, reason), nil),
		Param:     param,
	}
}

// PersistenceError is returned when statement execution fails mid-transaction.
// The surrounding write group has been rolled back.
type PersistenceError struct {
	*BaseError
}

func NewPersistence(message string, err error) *PersistenceError {
	return &PersistenceError{
		BaseError: NewBaseError(ErrorTypePersistence, message, err),
	}
}

// ResultShapeError is returned when the engine's rows are missing an expected
// column or hold the wrong type for it.
type ResultShapeError struct {
	*BaseError
	Column string
}

func NewResultShape(column, reason string) *ResultShapeError {
	return &ResultShapeError{
		BaseError: NewBaseError(ErrorTypeResultShape, fmt.Sprintf("column %q: %s", column, reason), nil),
		Column:    column,
	}
}

// ConfigError is returned when required configuration is missing or invalid
type ConfigError struct {
	*BaseError
	Field string
}

func NewConfig(field, reason string) *ConfigError {
	return &ConfigError{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("%s: %s", field, reason), nil),
		Field:     field,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		if baseErr, ok := err.(interface{ base() *BaseError }); ok {
			return baseErr.base().Type == errType
		}
		return IsErrorType(wrapped.Unwrap(), errType)
	}
	return false
}

func (e *BaseError) base() *BaseError { return e }
