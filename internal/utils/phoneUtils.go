package utils

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

var canonicalPhone = regexp.MustCompile(`^\+91[6-9]\d{9}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone maps the accepted spellings of an Indian mobile number
// ("98765 43210", "09876543210", "919876543210", "+91 98765-43210") onto the
// canonical "+91XXXXXXXXXX" form. Every lookup and every stored phone goes
// through here.
func NormalizePhone(raw string) (string, error) {
	p := phoneSeparators.Replace(strings.TrimSpace(raw))
	if p == "" {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(p, "+91"):
	case strings.HasPrefix(p, "+"):
		return "", ErrInvalidPhone
	case len(p) == 12 && strings.HasPrefix(p, "91"):
		p = "+" + p
	default:
		p = "+91" + strings.TrimLeft(p, "0")
	}

	if !canonicalPhone.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}

// NationalNumber strips the +91 prefix from a canonical phone.
func NationalNumber(phone string) string {
	return strings.TrimPrefix(phone, "+91")
}
