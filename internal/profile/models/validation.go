package models

import (
	"net/mail"
	"strings"

	dErrors "chariblock/pkg/domain-errors"
)

const maxNameLength = 100

// ValidateName trims and checks a display name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return "", dErrors.New(dErrors.CodeValidation, "name must be at most 100 characters")
	}
	return name, nil
}

// ValidateEmail trims and checks an email address.
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return email, nil
}
