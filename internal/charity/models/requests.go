package models

import (
	"strings"

	"github.com/shopspring/decimal"

	profilemodels "chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
)

const maxCharityNameLength = 200

// Attachment is an uploaded file as received from the client.
type Attachment struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// CreateCharityRequest carries the multipart fields of POST /charities.
// CreatorWallet defaults to WalletAddress, as the creator's profile is the
// one registered for the payout wallet.
type CreateCharityRequest struct {
	Name          string
	Description   string
	WalletAddress string
	TargetAmount  string
	Category      string
	CreatorName   string
	CreatorEmail  string
	CreatorWallet string

	GovIDFile       *Attachment
	ApprovalDocFile *Attachment
}

// Validate normalizes the request and checks every field that does not need
// the store.
func (r *CreateCharityRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
	r.CreatorWallet = strings.TrimSpace(r.CreatorWallet)
	if r.CreatorWallet == "" {
		r.CreatorWallet = r.WalletAddress
	}

	switch {
	case r.Name == "":
		return dErrors.New(dErrors.CodeValidation, "name is required")
	case len(r.Name) > maxCharityNameLength:
		return dErrors.New(dErrors.CodeValidation, "name must be at most 200 characters")
	case r.Description == "":
		return dErrors.New(dErrors.CodeValidation, "description is required")
	case r.WalletAddress == "":
		return dErrors.New(dErrors.CodeValidation, "walletAddress is required")
	}
	if _, err := id.ParseWalletAddress(r.WalletAddress); err != nil {
		return err
	}
	if _, err := id.ParseWalletAddress(r.CreatorWallet); err != nil {
		return err
	}
	if _, err := r.Target(); err != nil {
		return err
	}
	if _, err := ParseCategory(r.Category); err != nil {
		return err
	}
	var err error
	if r.CreatorName, err = profilemodels.ValidateName(r.CreatorName); err != nil {
		return dErrors.New(dErrors.CodeValidation, "creatorName: "+dErrors.MessageOf(err))
	}
	if r.CreatorEmail, err = profilemodels.ValidateEmail(r.CreatorEmail); err != nil {
		return dErrors.New(dErrors.CodeValidation, "creatorEmail: "+dErrors.MessageOf(err))
	}
	if r.GovIDFile == nil || len(r.GovIDFile.Bytes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "govIdFile is required")
	}
	if r.ApprovalDocFile == nil || len(r.ApprovalDocFile.Bytes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "approvalDocFile is required")
	}
	return nil
}

// Target parses the target amount; it must be zero or positive.
func (r *CreateCharityRequest) Target() (decimal.Decimal, error) {
	amount, err := id.ParseAmount(r.TargetAmount)
	if err != nil {
		return amount, err
	}
	if amount.IsNegative() {
		return amount, dErrors.New(dErrors.CodeInvalidAmount, "targetAmount must not be negative")
	}
	return amount, nil
}

// SetStatusRequest is the body of PUT /charities/{id}/status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

func (r *SetStatusRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	_, err := ParseTargetStatus(r.Status)
	return err
}

// ListQuery is the raw query string of GET /charities.
type ListQuery struct {
	Status        string
	Category      string
	CreatorWallet string
}

// Filter validates the query.
func (q ListQuery) Filter() (Filter, error) {
	var f Filter
	if s := strings.TrimSpace(q.Status); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return Filter{}, err
		}
		f.Status = st
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		cat, err := ParseCategory(c)
		if err != nil {
			return Filter{}, err
		}
		f.Category = cat
	}
	if w := strings.TrimSpace(q.CreatorWallet); w != "" {
		wallet, err := id.ParseWalletAddress(w)
		if err != nil {
			return Filter{}, err
		}
		f.CreatorWallet = wallet
	}
	return f, nil
}
