package errors

import (
	"errors"
	"fmt"
	"net/http"

	"callbridge/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodePlatform     ErrorCode = "PLATFORM_ERROR"
	ErrCodeSignal       ErrorCode = "SIGNAL_ERROR"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrCodeConflict, message, http.StatusConflict)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeUnavailable, message, http.StatusServiceUnavailable)
}

// NewPlatformError wraps a failure reported by the platform API.
func NewPlatformError(status int, message string) *AppError {
	return NewAppError(ErrCodePlatform, message, status).WithContext("platform_status", status)
}

// NewSignalError wraps a failure reported by the signaling server.
func NewSignalError(message string) *AppError {
	return NewAppError(ErrCodeSignal, message, http.StatusBadGateway)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

var domainErrors = []struct {
	err    error
	code   ErrorCode
	status int
}{
	{domain.ErrInvalidParameters, ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrObjectNotFound, ErrCodeNotFound, http.StatusNotFound},
	{domain.ErrAlreadyMounted, ErrCodeConflict, http.StatusConflict},
	{domain.ErrVideoSDKUnavailable, ErrCodeUnavailable, http.StatusServiceUnavailable},
	{domain.ErrPlatformUnavailable, ErrCodeUnavailable, http.StatusServiceUnavailable},
	{domain.ErrSessionNotInitialized, ErrCodeSignal, http.StatusBadGateway},
	{domain.ErrSessionNotConnected, ErrCodeSignal, http.StatusBadGateway},
	{domain.ErrPublisherDestroyed, ErrCodeSignal, http.StatusBadGateway},
}

// FromError returns the AppError in err's chain, or maps a domain sentinel
// onto its code. Anything else becomes an internal error wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return WrapError(err, d.code, d.err.Error(), d.status)
		}
	}
	return WrapError(err, ErrCodeInternal, "internal server error", http.StatusInternalServerError)
}
