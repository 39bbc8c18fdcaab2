package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidGeometry  ErrorType = "invalid_geometry"
	ErrorTypeInvalidQuality   ErrorType = "invalid_quality"
	ErrorTypeUnreadableImage  ErrorType = "unreadable_image"
	ErrorTypeUnsupportedFmt   ErrorType = "unsupported_format"
	ErrorTypeOutputExists     ErrorType = "output_exists"
	ErrorTypeUnwritableOutput ErrorType = "unwritable_output"
	ErrorTypeOCRUnavailable   ErrorType = "ocr_unavailable"
	ErrorTypeCancelled        ErrorType = "cancelled"
	ErrorTypeInternal         ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType   `json:"type"`
	Message    string      `json:"message"`
	Field      string      `json:"field,omitempty"`
	Value      interface{} `json:"value,omitempty"`
	StatusCode int         `json:"status_code"`
	Cause      error       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s=%v)", msg, e.Field, e.Value)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewInvalidGeometryError reports a malformed dimension or fit policy.
// field and value name the offending input, e.g. ("height", 0).
func NewInvalidGeometryError(message, field string, value interface{}) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidGeometry,
		Message:    message,
		Field:      field,
		Value:      value,
		StatusCode: http.StatusBadRequest,
	}
}

// NewInvalidQualityError reports a quality outside [1, 100]
func NewInvalidQualityError(message string, value int) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidQuality,
		Message:    message,
		Field:      "quality",
		Value:      value,
		StatusCode: http.StatusBadRequest,
	}
}

// NewUnreadableImageError reports a missing, corrupt or undecodable source
func NewUnreadableImageError(path string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnreadableImage,
		Message:    "cannot read image",
		Field:      "source",
		Value:      path,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewUnsupportedFormatError reports an output format that cannot be encoded
func NewUnsupportedFormatError(format string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnsupportedFmt,
		Message:    "output format is not supported",
		Field:      "format",
		Value:      format,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewOutputExistsError reports a destination that would be clobbered
func NewOutputExistsError(path string) *AppError {
	return &AppError{
		Type:       ErrorTypeOutputExists,
		Message:    "output file already exists",
		Field:      "output",
		Value:      path,
		StatusCode: http.StatusConflict,
	}
}

// NewUnwritableOutputError reports an I/O failure while writing the result
func NewUnwritableOutputError(path string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnwritableOutput,
		Message:    "cannot write output",
		Field:      "output",
		Value:      path,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewOCRUnavailableError reports a missing or failing OCR engine
func NewOCRUnavailableError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeOCRUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewCancelledError records an item that was never attempted
func NewCancelledError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCancelled,
		Message:    "processing was interrupted",
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsType checks if the error, or any error it wraps, is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// KindOf returns the error type, classifying foreign errors as internal
// and context errors as cancelled.
func KindOf(err error) ErrorType {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr):
		return appErr.Type
	case isContextError(err):
		return ErrorTypeCancelled
	default:
		return ErrorTypeInternal
	}
}

// FieldOf returns the offending field recorded on an AppError, if any
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	if isContextError(err) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
