package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrTypeValidation, "test error message")

	assert.Equal(t, ErrTypeValidation, err.Type)
	assert.Equal(t, "test error message", err.Message)
	assert.NoError(t, err.Cause)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrTypeStore, "failed to connect to %s", "qdrant")

	assert.Equal(t, ErrTypeStore, err.Type)
	assert.Equal(t, "failed to connect to qdrant", err.Message)
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(originalErr, ErrTypeNetwork, "network operation failed")

	assert.Equal(t, ErrTypeNetwork, wrappedErr.Type)
	assert.Equal(t, "network operation failed", wrappedErr.Message)
	assert.Equal(t, originalErr, wrappedErr.Cause)
	assert.ErrorIs(t, wrappedErr, originalErr)
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "error without cause",
			err: &Error{
				Type:    ErrTypeValidation,
				Message: "query rejected",
			},
			expected: "validation: query rejected",
		},
		{
			name: "error with cause",
			err: &Error{
				Type:    ErrTypeExecution,
				Message: "query failed",
				Cause:   errors.New("connection timeout"),
			},
			expected: "execution: query failed (caused by: connection timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsType(t *testing.T) {
	err := New(ErrTypePoolExhausted, "no connections available")

	assert.True(t, IsType(err, ErrTypePoolExhausted))
	assert.False(t, IsType(err, ErrTypeExecution))
	assert.False(t, IsType(errors.New("plain error"), ErrTypePoolExhausted))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsType(wrapped, ErrTypePoolExhausted))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeRetrieval, GetType(New(ErrTypeRetrieval, "embedder down")))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain error")))
}

func TestIsRequestScoped(t *testing.T) {
	assert.True(t, IsRequestScoped(New(ErrTypeExecutionTimeout, "deadline exceeded")))
	assert.True(t, IsRequestScoped(New(ErrTypeValidation, "rejected")))
	assert.False(t, IsRequestScoped(New(ErrTypeConfig, "bad config")))
	assert.False(t, IsRequestScoped(errors.New("plain error")))
}

func TestWithSuggestion(t *testing.T) {
	err := NewConfigError("invalid limit", "Query.DefaultLimit")

	assert.Equal(t, ErrTypeConfig, err.Type)
	assert.Contains(t, err.Message, "Query.DefaultLimit")
	assert.Len(t, err.Suggestions, 2)
}
