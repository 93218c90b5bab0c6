package utils

import "strings"

// NormalizeEmail lowercases and trims; it does not validate.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
