package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ValidationError
		expected string
	}{
		{name: "message only", err: &ValidationError{Message: "bad request"}, expected: "bad request"},
		{name: "with field", err: &ValidationError{Field: "limit", Message: "must be non-negative"}, expected: "limit: must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("unsupported source %q", "binance")
	assert.Equal(t, `unsupported source "binance"`, err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Empty(t, ve.Field)
}

func TestNewFieldError(t *testing.T) {
	err := NewFieldError("min_dte", "must be a number, got %q", "abc")
	assert.Equal(t, `min_dte: must be a number, got "abc"`, err.Error())
	assert.True(t, IsValidationError(err))
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(NewValidationError("x")))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", NewValidationError("x"))))
	assert.False(t, IsValidationError(errors.New("x")))
	assert.False(t, IsValidationError(nil))
}
