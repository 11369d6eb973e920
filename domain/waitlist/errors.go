package waitlist

import "errors"

var (
	// ErrInvalidEmail is returned when the normalized input fails the email syntax check.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInvalidToken covers malformed, unknown and rotated-away tokens alike.
	ErrInvalidToken = errors.New("invalid or unknown token")
)
