package models

import (
	"strings"
	"time"

	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
)

// Kind marks the role a wallet plays on the platform.
type Kind string

const (
	KindDonor          Kind = "donor"
	KindCharityCreator Kind = "charity_creator"
)

// ParseKind validates a profile kind from external input.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindDonor, KindCharityCreator:
		return k, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "profileType is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "profileType must be donor or charity_creator")
	}
}

// Profile is a wallet-identified participant. The wallet address is the
// primary key and never changes.
type Profile struct {
	WalletAddress id.WalletAddress
	Name          string
	Email         string
	Kind          Kind
	Verified      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Changes is a partial update; nil fields are left untouched.
type Changes struct {
	Name  *string
	Email *string
	Kind  *Kind
}

// Apply mutates p with the non-nil fields of c and stamps UpdatedAt.
func (c Changes) Apply(p *Profile, now time.Time) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Email != nil {
		p.Email = *c.Email
	}
	if c.Kind != nil {
		p.Kind = *c.Kind
	}
	p.UpdatedAt = now
}
