package logging

import (
	"regexp"
)

const (
	// MaxValueLogLength is the maximum length of a property value to log
	MaxValueLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match store API credentials passed as query parameters
	// Matches: key_credential=xxx, key_identity=xxx (until next delimiter)
	storeKeyPattern = regexp.MustCompile(`(?i)(key_credential|key_identity)=[^;&\s]+`)

	// Pattern to match JWT tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Pattern to match potential API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Pattern to match URL credentials (user:pass@host format)
	urlCredPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeURL removes store credentials from a request URL.
// Use this before logging any store request URL.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	// Replace key identity/credential query values
	sanitized := storeKeyPattern.ReplaceAllString(rawURL, "${1}="+RedactedText)

	// Replace user:pass@host format
	sanitized = urlCredPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data
// Use this before logging any error from store operations
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Remove store credentials
	sanitized := storeKeyPattern.ReplaceAllString(errStr, "${1}="+RedactedText)

	// Remove JWT tokens
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)

	// Remove API keys
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	// Remove URL credential details
	sanitized = urlCredPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
