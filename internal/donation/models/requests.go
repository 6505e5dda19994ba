package models

import (
	"bytes"
	"encoding/json"
	"strings"

	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
)

// Numeric accepts a JSON number or string and keeps its literal text, so
// amounts never pass through float64.
type Numeric string

func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = Numeric(num.String())
	return nil
}

// CreateDonationRequest is the body of POST /donations.
type CreateDonationRequest struct {
	CharityID    Numeric `json:"charityId"`
	DonorAddress string  `json:"donorAddress"`
	Amount       Numeric `json:"amount"`
	TxHash       string  `json:"txHash"`
	BlockNumber  *int64  `json:"blockNumber"`
}

func (r *CreateDonationRequest) Validate() error {
	_, err := r.ToRecordRequest()
	return err
}

// ToRecordRequest parses every field into its domain type. The amount sign is
// checked by the ledger.
func (r *CreateDonationRequest) ToRecordRequest() (RecordRequest, error) {
	if strings.TrimSpace(string(r.CharityID)) == "" {
		return RecordRequest{}, dErrors.New(dErrors.CodeValidation, "charityId is required")
	}
	charityID, err := id.ParseCharityID(string(r.CharityID))
	if err != nil {
		return RecordRequest{}, err
	}
	donor, err := id.ParseWalletAddress(r.DonorAddress)
	if err != nil {
		return RecordRequest{}, err
	}
	amount, err := id.ParseAmount(string(r.Amount))
	if err != nil {
		return RecordRequest{}, err
	}
	txHash, err := id.ParseTxHash(r.TxHash)
	if err != nil {
		return RecordRequest{}, err
	}
	if r.BlockNumber != nil && *r.BlockNumber < 0 {
		return RecordRequest{}, dErrors.New(dErrors.CodeValidation, "blockNumber must not be negative")
	}
	return RecordRequest{
		CharityID:    charityID,
		DonorAddress: donor,
		Amount:       amount,
		TxHash:       txHash,
		BlockNumber:  r.BlockNumber,
	}, nil
}

// ListQuery is the raw query string of GET /donations.
type ListQuery struct {
	CharityID    string
	DonorAddress string
}

// Filter validates the query.
func (q ListQuery) Filter() (Filter, error) {
	var f Filter
	if s := strings.TrimSpace(q.CharityID); s != "" {
		charityID, err := id.ParseCharityID(s)
		if err != nil {
			return Filter{}, err
		}
		f.CharityID = charityID
	}
	if s := strings.TrimSpace(q.DonorAddress); s != "" {
		donor, err := id.ParseWalletAddress(s)
		if err != nil {
			return Filter{}, err
		}
		f.DonorAddress = donor
	}
	return f, nil
}
