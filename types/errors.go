package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents categorized error codes for hybrid document operations
type ErrorCode string

const (
	// Classification errors
	ErrCodeUnrecognizedDocument ErrorCode = "UNRECOGNIZED_DOCUMENT"
	ErrCodeAmbiguousLevel       ErrorCode = "AMBIGUOUS_LEVEL"

	// Assembly errors
	ErrCodeDuplicateFilename   ErrorCode = "DUPLICATE_FILENAME"
	ErrCodeInvalidRelationship ErrorCode = "INVALID_RELATIONSHIP"
	ErrCodeMalformedMetadata   ErrorCode = "MALFORMED_METADATA"

	// PDF errors
	ErrCodeSourceDocument ErrorCode = "SOURCE_DOCUMENT"
	ErrCodeNoEmbeddedXML  ErrorCode = "NO_EMBEDDED_XML"
	ErrCodeWriteError     ErrorCode = "WRITE_ERROR"

	// Operation errors
	ErrCodeUnsupportedLegacyOperation ErrorCode = "UNSUPPORTED_LEGACY_OPERATION"
	ErrCodeSchemaValidation           ErrorCode = "SCHEMA_VALIDATION"
	ErrCodeInvalidInput               ErrorCode = "INVALID_INPUT"

	// I/O errors
	ErrCodeIOError ErrorCode = "IO_ERROR"
)

// Error is the structured error type returned by every package of this module
type Error struct {
	Code    ErrorCode              // Error category code
	Message string                 // Human-readable message
	Cause   error                  // Underlying error (if any)
	Context map[string]interface{} // Additional context (filename, namespace, object number...)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error and returns the same error for chaining
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorf creates a new Error with a formatted message
func NewErrorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapErrorf wraps an existing error with a formatted message
func WrapErrorf(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Sentinel errors for use with errors.Is()
var (
	ErrUnrecognizedDocument = &Error{Code: ErrCodeUnrecognizedDocument}
	ErrAmbiguousLevel       = &Error{Code: ErrCodeAmbiguousLevel}

	ErrDuplicateFilename   = &Error{Code: ErrCodeDuplicateFilename}
	ErrInvalidRelationship = &Error{Code: ErrCodeInvalidRelationship}
	ErrMalformedMetadata   = &Error{Code: ErrCodeMalformedMetadata}

	ErrSourceDocument = &Error{Code: ErrCodeSourceDocument}
	ErrNoEmbeddedXML  = &Error{Code: ErrCodeNoEmbeddedXML}
	ErrWriteError     = &Error{Code: ErrCodeWriteError}

	ErrUnsupportedLegacyOperation = &Error{Code: ErrCodeUnsupportedLegacyOperation}
	ErrSchemaValidation           = &Error{Code: ErrCodeSchemaValidation}
	ErrInvalidInput               = &Error{Code: ErrCodeInvalidInput}

	ErrIOError = &Error{Code: ErrCodeIOError}
)

// AsError returns the first *Error in err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from anywhere in err's chain
func GetErrorCode(err error) (ErrorCode, bool) {
	if e, ok := AsError(err); ok {
		return e.Code, true
	}
	return "", false
}

// IsClassificationError reports whether err means the XML could not be mapped to a flavor
func IsClassificationError(err error) bool {
	code, ok := GetErrorCode(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeUnrecognizedDocument, ErrCodeAmbiguousLevel:
		return true
	}
	return false
}
