package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "chariblock/pkg/domain"
)

// Donation is an append-only record of an on-chain transfer to a charity.
// TxHash is unique system-wide.
type Donation struct {
	ID           id.DonationID
	CharityID    id.CharityID
	CharityName  string
	DonorAddress id.WalletAddress
	Amount       decimal.Decimal
	TxHash       id.TxHash
	BlockNumber  *int64
	Confirmed    bool
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
}

// Filter narrows donation listings. Zero values match everything.
type Filter struct {
	CharityID    id.CharityID
	DonorAddress id.WalletAddress
}

// Matches reports whether d passes the filter.
func (f Filter) Matches(d *Donation) bool {
	if f.CharityID != 0 && d.CharityID != f.CharityID {
		return false
	}
	if f.DonorAddress != "" && d.DonorAddress != f.DonorAddress {
		return false
	}
	return true
}

// RecordRequest is a donation claim submitted by a client after the
// transaction was finalized on-chain.
type RecordRequest struct {
	CharityID    id.CharityID
	DonorAddress id.WalletAddress
	Amount       decimal.Decimal
	TxHash       id.TxHash
	BlockNumber  *int64
}

// RecordResult is the persisted donation and the charity's raised amount
// after it was applied.
type RecordResult struct {
	Donation     *Donation
	RaisedAmount decimal.Decimal
}
