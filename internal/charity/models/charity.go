package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
)

// Status is the review state of a charity listing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts any known status, including pending. Use
// ParseTargetStatus for transitions.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidStatus, "status must be pending, approved or rejected")
	}
}

// ParseTargetStatus accepts only the statuses a charity can move to.
func ParseTargetStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidStatus, "status must be approved or rejected")
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Category is the cause a charity raises funds for.
type Category string

const (
	CategoryEducation      Category = "Education"
	CategoryHealthcare     Category = "Healthcare"
	CategoryEnvironment    Category = "Environment"
	CategoryPoverty        Category = "Poverty"
	CategoryDisasterRelief Category = "Disaster Relief"
	CategoryAnimalWelfare  Category = "Animal Welfare"
	CategoryHumanRights    Category = "Human Rights"
	CategoryOther          Category = "Other"
)

var validCategories = map[Category]bool{
	CategoryEducation:      true,
	CategoryHealthcare:     true,
	CategoryEnvironment:    true,
	CategoryPoverty:        true,
	CategoryDisasterRelief: true,
	CategoryAnimalWelfare:  true,
	CategoryHumanRights:    true,
	CategoryOther:          true,
}

// ParseCategory validates a category from external input.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !validCategories[c] {
		return "", dErrors.New(dErrors.CodeValidation, "category is not supported")
	}
	return c, nil
}

// Document references a pinned file.
type Document struct {
	Hash string
	URL  string
}

// Charity is a fundraising listing. RaisedAmount is owned by the donation
// ledger and only ever increased through it.
type Charity struct {
	ID            id.CharityID
	Name          string
	Description   string
	WalletAddress id.WalletAddress
	TargetAmount  decimal.Decimal
	RaisedAmount  decimal.Decimal
	Category      Category
	Status        Status
	CreatorName   string
	CreatorEmail  string
	CreatorWallet id.WalletAddress
	GovIDDocument Document
	ApprovalDoc   Document
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ApprovedAt    *time.Time
}

// Filter narrows charity listings. Zero values match everything.
type Filter struct {
	Status        Status
	Category      Category
	CreatorWallet id.WalletAddress
}

// Matches reports whether c passes the filter.
func (f Filter) Matches(c *Charity) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.CreatorWallet != "" && c.CreatorWallet != f.CreatorWallet {
		return false
	}
	return true
}

// Stats summarizes fundraising progress.
type Stats struct {
	CharityID     id.CharityID
	DonationCount int
	RaisedAmount  decimal.Decimal
	TargetAmount  decimal.Decimal
	PercentFunded decimal.Decimal
}

// NewStats computes progress; a zero target reports 0 percent.
func NewStats(c *Charity, donationCount int) Stats {
	pct := decimal.Zero
	if c.TargetAmount.IsPositive() {
		pct = c.RaisedAmount.Div(c.TargetAmount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return Stats{
		CharityID:     c.ID,
		DonationCount: donationCount,
		RaisedAmount:  c.RaisedAmount,
		TargetAmount:  c.TargetAmount,
		PercentFunded: pct,
	}
}
