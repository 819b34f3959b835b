package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"callbridge/internal/core/domain"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is should see the cause")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestNewPlatformError(t *testing.T) {
	err := NewPlatformError(http.StatusBadGateway, "commit failed")
	if err.Code != ErrCodePlatform {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodePlatform)
	}
	if err.Context["platform_status"] != http.StatusBadGateway {
		t.Errorf("platform_status = %v", err.Context["platform_status"])
	}
}

func TestGetAppError_ThroughWrapping(t *testing.T) {
	appErr := NewSignalError("ack timeout")
	wrapped := fmt.Errorf("publish: %w", appErr)

	if GetAppError(wrapped) != appErr {
		t.Error("GetAppError() should unwrap to the AppError")
	}
	if !IsAppError(wrapped) {
		t.Error("IsAppError() should return true for wrapped AppError")
	}
	if !HasCode(wrapped, ErrCodeSignal) {
		t.Error("HasCode() should match SIGNAL_ERROR")
	}
	if GetAppError(errors.New("plain")) != nil {
		t.Error("GetAppError() should return nil for plain errors")
	}
	if GetAppError(nil) != nil {
		t.Error("GetAppError(nil) should return nil")
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"app error passes through", NewConflictError("busy"), ErrCodeConflict, http.StatusConflict},
		{"wrapped not found", fmt.Errorf("get: %w", domain.ErrObjectNotFound), ErrCodeNotFound, http.StatusNotFound},
		{"invalid parameters", domain.ErrInvalidParameters, ErrCodeInvalidInput, http.StatusBadRequest},
		{"sdk unavailable", domain.ErrVideoSDKUnavailable, ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"platform unavailable", domain.ErrPlatformUnavailable, ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"not connected", domain.ErrSessionNotConnected, ErrCodeSignal, http.StatusBadGateway},
		{"plain", errors.New("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Code != tt.code || got.HTTPStatus != tt.status {
				t.Errorf("FromError(%v) = %s/%d, want %s/%d", tt.err, got.Code, got.HTTPStatus, tt.code, tt.status)
			}
			if !errors.Is(got, tt.err) && GetAppError(tt.err) == nil {
				t.Errorf("FromError(%v) lost the cause", tt.err)
			}
		})
	}
	if FromError(nil) != nil {
		t.Error("FromError(nil) should return nil")
	}
}
