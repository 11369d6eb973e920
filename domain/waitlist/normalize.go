package waitlist

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var emailValidator = validator.New()

// NormalizeEmail trims and lowercases raw, then checks the result is a
// syntactically valid address of at most 255 characters.
func NormalizeEmail(raw string) (string, error) {
	// A Caser holds state, so each call gets its own.
	email := cases.Lower(language.Und).String(strings.TrimSpace(raw))

	if err := emailValidator.Var(email, "required,email,max=255"); err != nil {
		return "", ErrInvalidEmail
	}

	return email, nil
}
