package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseError_Format(t *testing.T) {
	err := NewBaseError(ErrorTypePersistence, "write failed", nil)
	assert.Equal(t, "[persistence] write failed", err.Error())

	wrapped := NewBaseError(ErrorTypePersistence, "write failed", stderrors.New("connection reset"))
	assert.Contains(t, wrapped.Error(), "connection reset")
}

func TestBaseError_Unwrap(t *testing.T) {
	inner := stderrors.New("boom")
	err := NewPersistence("group rolled back", inner)
	assert.True(t, stderrors.Is(err, inner))
}

func TestIsErrorType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
	}{
		{"validation", NewValidation("role", "out of range"), ErrorTypeValidation},
		{"query build", NewQueryBuild("content", "control character"), ErrorTypeQueryBuild},
		{"persistence", NewPersistence("failed", nil), ErrorTypePersistence},
		{"result shape", NewResultShape("timestamp", "missing"), ErrorTypeResultShape},
		{"extraction", NewExtractionParse("not json", nil), ErrorTypeExtraction},
		{"config", NewConfig("GRAPH_URI", "required"), ErrorTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsErrorType(tt.err, tt.errType))
			assert.False(t, IsErrorType(tt.err, ErrorType("other")))
		})
	}
}

func TestIsErrorType_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewResultShape("id", "missing"))
	assert.True(t, IsErrorType(err, ErrorTypeResultShape))
}

func TestIsErrorType_Nil(t *testing.T) {
	assert.False(t, IsErrorType(nil, ErrorTypeValidation))
}

func TestResultShapeError_Column(t *testing.T) {
	err := NewResultShape("started_at", "missing from result row")
	assert.Equal(t, "started_at", err.Column)
	assert.Contains(t, err.Error(), "started_at")
}
