package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "simple error",
			err:      NewError(ErrCodeUnrecognizedDocument, "unknown namespace"),
			expected: "[UNRECOGNIZED_DOCUMENT] unknown namespace",
		},
		{
			name:     "error with cause",
			err:      WrapError(ErrCodeSourceDocument, "cannot open source PDF", fmt.Errorf("no startxref")),
			expected: "[SOURCE_DOCUMENT] cannot open source PDF: no startxref",
		},
		{
			name:     "formatted error",
			err:      NewErrorf(ErrCodeDuplicateFilename, "attachment %q appears twice", "a.pdf"),
			expected: `[DUPLICATE_FILENAME] attachment "a.pdf" appears twice`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := WrapError(ErrCodeWriteError, "write failed", cause)

	assert.Same(t, cause, err.Unwrap())
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestError_Is(t *testing.T) {
	err := NewError(ErrCodeAmbiguousLevel, "no guideline parameter")

	assert.True(t, errors.Is(err, ErrAmbiguousLevel))
	assert.False(t, errors.Is(err, ErrUnrecognizedDocument))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, errors.Is(wrapped, ErrAmbiguousLevel))
}

func TestError_WithContext(t *testing.T) {
	err := NewError(ErrCodeUnrecognizedDocument, "unexpected root").
		WithContext("namespace", "urn:x").
		WithContext("root", "Foo")

	assert.Equal(t, "urn:x", err.Context["namespace"])
	assert.Equal(t, "Foo", err.Context["root"])
}

func TestGetErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", NewError(ErrCodeMalformedMetadata, "bad xmp"))

	code, ok := GetErrorCode(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMalformedMetadata, code)

	_, ok = GetErrorCode(fmt.Errorf("standard error"))
	assert.False(t, ok)
}

func TestIsClassificationError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{NewError(ErrCodeUnrecognizedDocument, ""), true},
		{NewError(ErrCodeAmbiguousLevel, ""), true},
		{fmt.Errorf("ctx: %w", NewError(ErrCodeAmbiguousLevel, "")), true},
		{NewError(ErrCodeSourceDocument, ""), false},
		{fmt.Errorf("standard error"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsClassificationError(tt.err), "%v", tt.err)
	}
}
