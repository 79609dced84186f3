package auth

import (
	"errors"
	"unicode"
)

// ValidatePassword checks that a password meets the minimum
// requirements: at least 8 characters with at least one letter and one
// digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter {
		return errors.New("password must contain at least 1 letter")
	}
	if !hasDigit {
		return errors.New("password must contain at least 1 digit")
	}
	return nil
}
