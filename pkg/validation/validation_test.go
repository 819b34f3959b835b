package validation

import (
	"strings"
	"testing"

	"callbridge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGUID(t *testing.T) {
	tests := []struct {
		name    string
		guid    string
		wantErr bool
	}{
		{"numeric", "281474976710657", false},
		{"uuid", "5f0c1d1e-3b7a-4c55-9a57-0c2f2a9f7c11", false},
		{"empty", "", true},
		{"slash", "1/../2", true},
		{"too long", strings.Repeat("1", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGUID(tt.guid)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateGUID(%q) = %v", tt.guid, err)
		})
	}
}

func TestValidateActionName(t *testing.T) {
	assert.NoError(t, ValidateActionName("VideoCall.ACT_EndCall"))
	assert.NoError(t, ValidateActionName("Interrupt"))
	assert.Error(t, ValidateActionName(""))
	assert.Error(t, ValidateActionName("Video Call.End"))
	assert.Error(t, ValidateActionName("Module..Action"))
}

func TestValidateAttributeName(t *testing.T) {
	assert.NoError(t, ValidateAttributeName("IsOffline"))
	assert.Error(t, ValidateAttributeName(""))
	assert.Error(t, ValidateAttributeName("Entity.IsOffline"))
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		schemes []string
		wantErr bool
	}{
		{"http", "http://localhost:8080", nil, false},
		{"wss", "wss://signal.example.com/ws", nil, false},
		{"empty", "", nil, true},
		{"ftp", "ftp://example.com", nil, true},
		{"no host", "http://", nil, true},
		{"restricted scheme ok", "ws://localhost/ws", []string{"ws", "wss"}, false},
		{"restricted scheme rejected", "http://localhost", []string{"ws", "wss"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url, tt.schemes...)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateURL(%q) = %v", tt.url, err)
		})
	}
}

func TestValidateTheme(t *testing.T) {
	assert.NoError(t, ValidateTheme(""))
	assert.NoError(t, ValidateTheme(domain.ThemeBlur))
	assert.NoError(t, ValidateTheme(domain.ThemeImage))
	assert.Error(t, ValidateTheme("sepia"))
}

func TestValidateCallProps(t *testing.T) {
	valid := domain.CallProps{
		Token:            "T1",
		SessionID:        "S1",
		APIKey:           "K1",
		EntityGUID:       "42",
		Theme:            domain.ThemeBlur,
		EndCallAction:    "VideoCall.ACT_EndCall",
		OfflineAttribute: "IsOffline",
	}
	require.NoError(t, ValidateCallProps(valid))

	invalid := valid
	invalid.Token = ""
	invalid.SessionID = " "
	invalid.InterruptAction = "bad name"
	err := ValidateCallProps(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
	assert.Contains(t, err.Error(), "session id is required")
	assert.Contains(t, err.Error(), "interrupt action")
}
