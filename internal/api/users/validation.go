// Package users provides the profile API endpoints.
package users

import (
	"regexp"
	"strings"
	"time"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidationError contains validation error details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if len(email) > 255 {
		return &ValidationError{Field: "email", Message: "email must be at most 255 characters"}
	}
	if !emailRegex.MatchString(email) {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateName validates a first or last name field.
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: field, Message: field + " must be at most 100 characters"}
	}
	return nil
}

// ParseDateOfBirth parses a YYYY-MM-DD date which must lie in the past.
func ParseDateOfBirth(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date_of_birth", Message: "date_of_birth must be formatted as YYYY-MM-DD"}
	}
	if t.After(time.Now()) {
		return time.Time{}, &ValidationError{Field: "date_of_birth", Message: "date_of_birth must be in the past"}
	}
	return t, nil
}
