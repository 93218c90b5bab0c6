package utils

import (
	"crypto/rand"
	"math/big"
)

const otpChars = "0123456789"

// GenerateSecureOTP returns a uniformly distributed numeric code of the given length.
func GenerateSecureOTP(length int) (string, error) {
	buffer := make([]byte, length)
	max := big.NewInt(int64(len(otpChars)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buffer[i] = otpChars[n.Int64()]
	}

	return string(buffer), nil
}

// IsOTPCode reports whether s is exactly length decimal digits.
func IsOTPCode(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
