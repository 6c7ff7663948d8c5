// Package logging keeps secrets out of log output. Webhook destinations are
// user-configured URLs that routinely embed auth material in query strings or
// userinfo, and delivery errors echo the URL back.
package logging

import (
	"regexp"
)

// RedactedText replaces sensitive values.
const RedactedText = "[REDACTED]"

var (
	// query or form parameters that carry credentials
	secretParamPattern = regexp.MustCompile(`(?i)(token|key|secret|signature|auth|password)=[^&\s]+`)

	// user:pass@host credentials embedded in a URL
	userinfoPattern = regexp.MustCompile(`://[^/@\s]+@`)

	// bearer tokens quoted back in error messages
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)
)

// SanitizeURL redacts credential-bearing parts of a URL for logging. The
// scheme, host and path survive so the destination stays identifiable.
func SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	return sanitizeString(raw)
}

// SanitizeError sanitizes an error message that may echo a destination URL.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitizeString(err.Error())
}

func sanitizeString(s string) string {
	s = secretParamPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = userinfoPattern.ReplaceAllString(s, "://"+RedactedText+"@")
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	return s
}
