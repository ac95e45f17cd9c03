package stringutils

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern          = regexp.MustCompile(`(?i)(https?://|ftp://|www\.)[^\s]+`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	emailPattern        = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	multiSpacePattern   = regexp.MustCompile(`\s+`)
)

// SanitizeTitleContent removes URLs, markdown links, email addresses and
// special characters so the remainder reads as a plain title.
func SanitizeTitleContent(content string) string {
	content = urlPattern.ReplaceAllString(content, "")
	content = markdownLinkPattern.ReplaceAllString(content, "$1")
	content = emailPattern.ReplaceAllString(content, "")

	var result strings.Builder
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) ||
			r == '.' || r == ',' || r == '!' || r == '?' || r == '-' || r == '\'' {
			result.WriteRune(r)
		}
	}
	content = result.String()

	content = multiSpacePattern.ReplaceAllString(content, " ")
	content = strings.TrimSpace(content)
	content = strings.TrimRight(content, " .,!?-'")

	return content
}

// TruncateTitle keeps at most maxLen characters of title and appends an
// ellipsis marker when anything was cut. Cuts prefer a word boundary as long
// as at least half of the allowed length survives.
func TruncateTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}

	// slice by runes so a multi-byte character is never split at the boundary
	truncated := string(runes[:maxLen])
	minLen := maxLen / 2

	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > minLen {
		truncated = strings.TrimRight(truncated[:lastSpace], " ")
	}

	return truncated + "..."
}

// GenerateTitle creates a clean, truncated title from message content.
func GenerateTitle(content string, maxLen int) string {
	sanitized := SanitizeTitleContent(content)
	if sanitized == "" {
		return ""
	}
	return TruncateTitle(sanitized, maxLen)
}
