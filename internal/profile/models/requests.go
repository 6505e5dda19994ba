package models

import (
	"strings"

	dErrors "chariblock/pkg/domain-errors"
)

// CreateProfileRequest is the body of POST /profiles.
type CreateProfileRequest struct {
	WalletAddress string `json:"walletAddress"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	ProfileType   string `json:"profileType"`
}

// Validate normalizes the request and checks required fields. Format checks
// on the wallet address happen in the service, where it is parsed.
func (r *CreateProfileRequest) Validate() error {
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
	if r.WalletAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "walletAddress is required")
	}
	var err error
	if r.Name, err = ValidateName(r.Name); err != nil {
		return err
	}
	if r.Email, err = ValidateEmail(r.Email); err != nil {
		return err
	}
	_, err = ParseKind(r.ProfileType)
	return err
}

// UpdateProfileRequest is the body of PUT /profiles/{walletAddress}. Absent
// fields are left unchanged; isVerified and the wallet are not settable.
type UpdateProfileRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	ProfileType *string `json:"profileType"`
}

func (r *UpdateProfileRequest) Validate() error {
	_, err := r.Changes()
	return err
}

// Changes converts the request into validated Changes.
func (r *UpdateProfileRequest) Changes() (Changes, error) {
	var c Changes
	if r.Name != nil {
		name, err := ValidateName(*r.Name)
		if err != nil {
			return Changes{}, err
		}
		c.Name = &name
	}
	if r.Email != nil {
		email, err := ValidateEmail(*r.Email)
		if err != nil {
			return Changes{}, err
		}
		c.Email = &email
	}
	if r.ProfileType != nil {
		kind, err := ParseKind(*r.ProfileType)
		if err != nil {
			return Changes{}, err
		}
		c.Kind = &kind
	}
	return c, nil
}
