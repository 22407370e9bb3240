package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString_RedactsSecrets(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"password assignment", "login failed: password=hunter2"},
		{"password colon", "password: hunter2"},
		{"token", "invalid token=abc123def"},
		{"api key", "api_key=sk-12345"},
		{"client secret", "client_secret=oops"},
		{"bearer", "auth header bearer eyJhbGciOi.payload.sig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := SanitizeString(tt.input)
			assert.Contains(t, out, "REDACTED")
			assert.NotContains(t, out, "hunter2")
			assert.NotContains(t, out, "sk-12345")
		})
	}
}

func TestSanitizeString_NeutralizesNewlines(t *testing.T) {
	out := SanitizeString("line one\nFORGED LOG LINE\r\n")
	assert.NotContains(t, out, "\n")
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "\\n")
}

func TestSanitizeString_TruncatesOversized(t *testing.T) {
	out := SanitizeString(strings.Repeat("a", MaxSanitizeLength+100))
	assert.True(t, strings.HasSuffix(out, "... [truncated]"))
	assert.LessOrEqual(t, len(out), MaxSanitizeLength+len("... [truncated]"))
}

func TestSanitizeString_PassesCleanInput(t *testing.T) {
	assert.Equal(t, "rule not found", SanitizeString("rule not found"))
	assert.Empty(t, SanitizeString(""))
}

func TestSanitizeError(t *testing.T) {
	assert.Empty(t, SanitizeError(nil))
	assert.Contains(t, SanitizeError(errors.New("bad password=x")), "REDACTED")
}
