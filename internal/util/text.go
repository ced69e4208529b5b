package util

import "strings"

// SanitizePostgresText strips invalid UTF-8 sequences and NUL bytes, neither
// of which Postgres accepts in text columns.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
