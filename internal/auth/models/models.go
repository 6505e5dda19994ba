package models

import (
	"regexp"
	"strings"
	"time"

	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
)

// Credential binds a username/password login to a wallet profile.
type Credential struct {
	Username      string
	PasswordHash  string
	WalletAddress id.WalletAddress
	CreatedAt     time.Time
}

// Session is an issued access token.
type Session struct {
	ID            string
	TokenID       string
	WalletAddress id.WalletAddress
	AccessToken   string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Device        string
}

const (
	maxUsernameLength = 150
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]+$`)

// SignupRequest registers a login for an existing wallet profile.
type SignupRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	WalletAddress string `json:"walletAddress"`
}

func (r *SignupRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if err := validateUsername(r.Username); err != nil {
		return err
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(r.Password) > maxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at most 72 bytes")
	}
	_, err := id.ParseWalletAddress(r.WalletAddress)
	return err
}

// LoginRequest carries credentials. UserAgent is filled from the request
// headers, never from the body.
type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	UserAgent string `json:"-"`
}

func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "username and password are required")
	}
	return nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return dErrors.New(dErrors.CodeValidation, "username is required")
	case len(username) > maxUsernameLength:
		return dErrors.New(dErrors.CodeValidation, "username must be at most 150 characters")
	case !usernamePattern.MatchString(username):
		return dErrors.New(dErrors.CodeValidation, "username may contain letters, digits and @.+-_ only")
	}
	return nil
}
