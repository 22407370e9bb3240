// Package util holds small shared helpers.
package util

import (
	"regexp"
	"strings"
)

// MaxSanitizeLength caps input size before sanitization so a hostile
// payload cannot balloon log processing.
const MaxSanitizeLength = 64 * 1024

var secretPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)(password|passwd|pwd)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
	{regexp.MustCompile(`(?i)(token|auth|authorization)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
	{regexp.MustCompile(`(?i)(secret|client[_-]?secret)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`), "bearer REDACTED"},
}

// SanitizeError sanitizes an error message for logging: secrets are
// redacted and newlines stripped so log lines cannot be forged.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString redacts credential-looking substrings and neutralizes
// control characters before a user-influenced string reaches the log.
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > MaxSanitizeLength {
		s = s[:MaxSanitizeLength] + "... [truncated]"
	}

	for _, sp := range secretPatterns {
		s = sp.pattern.ReplaceAllString(s, sp.replacement)
	}

	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
