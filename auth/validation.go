package auth

import (
	"net/mail"
	"strings"

	"github.com/pkg/errors"
)

// ValidateEmail checks a login request's email address and returns the
// normalized form.
func ValidateEmail(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", errors.Wrap(ErrValidation, "email is required")
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return "", errors.Wrap(ErrValidation, "invalid email address")
	}
	// Reject "Name <user@host>" forms; the login endpoint wants a bare address.
	if parsed.Address != address {
		return "", errors.Wrap(ErrValidation, "invalid email address")
	}

	return parsed.Address, nil
}
