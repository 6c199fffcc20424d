package pipeline

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// ValidateURL trims raw, adds https:// when no scheme is given and requires
// a dotted hostname. It returns the normalized URL.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &venture.ValidationError{Field: "url", Reason: "URL cannot be empty"}
	}
	if !schemePrefix.MatchString(trimmed) {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &venture.ValidationError{Field: "url", Reason: "Invalid URL format"}
	}
	if host := u.Hostname(); host == "" || !strings.Contains(host, ".") {
		return "", &venture.ValidationError{Field: "url", Reason: "Invalid domain name"}
	}
	return trimmed, nil
}
