package domain

import (
	"strconv"
	"strings"

	dErrors "chariblock/pkg/domain-errors"
)

// CharityID is the surrogate key of a charity. Zero is never assigned.
type CharityID int64

// DonationID is the surrogate key of a donation. Zero is never assigned.
type DonationID int64

// ParseCharityID parses a positive decimal charity id.
func ParseCharityID(s string) (CharityID, error) {
	v, err := parsePositiveID(s, "charity id")
	return CharityID(v), err
}

// ParseDonationID parses a positive decimal donation id.
func ParseDonationID(s string) (DonationID, error) {
	v, err := parsePositiveID(s, "donation id")
	return DonationID(v), err
}

func parsePositiveID(s, name string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" cannot be empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be a positive integer")
	}
	return v, nil
}

func (id CharityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id DonationID) String() string {
	return strconv.FormatInt(int64(id), 10)
}
