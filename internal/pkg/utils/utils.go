package utils

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// GenerateRefID generates a UUID v4 reference id for provider transactions.
func GenerateRefID() string {
	return uuid.New().String()
}

// FormatNumber adds dot separators to a rupiah amount (12.345.678).
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if len(s) > 3 {
		var b strings.Builder
		for i, c := range s {
			if i > 0 && (len(s)-i)%3 == 0 {
				b.WriteRune('.')
			}
			b.WriteRune(c)
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// ParseAmount converts user input like "10.000" or "10,000" to an int64.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	return strconv.ParseInt(s, 10, 64)
}

// IsNumeric checks if a string is non-empty and all digits.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NowStamp returns the current time formatted for transaction rows.
// Lexicographic order matches chronological order, so ORDER BY works.
func NowStamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
