package models

import (
	"time"
)

// Profile holds the personal details attached to a user account.
// Exactly one profile exists per user; it is created lazily with
// placeholder defaults the first time it is fetched.
type Profile struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Username          string     `json:"username"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Gender            string     `json:"gender,omitempty"`
	DateOfBirth       *time.Time `json:"date_of_birth,omitempty"`
	Country           string     `json:"country,omitempty"`
	Address           string     `json:"address,omitempty"`
	PreferredLanguage string     `json:"preferred_language,omitempty"`
	Avatar            string     `json:"avatar,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Placeholder values used when a profile is created before the user
// has filled anything in.
const (
	DefaultFirstName = "John"
	DefaultLastName  = "Doe"
	DefaultEmail     = "john@gmail.com"
	DefaultPhone     = "123-456-7890"
)

// NewProfile creates a default profile for the given user.
func NewProfile(userID, username string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:    userID,
		Username:  username,
		FirstName: DefaultFirstName,
		LastName:  DefaultLastName,
		Email:     DefaultEmail,
		Phone:     DefaultPhone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
