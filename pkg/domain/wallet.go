package domain

import (
	"regexp"
	"strings"

	dErrors "chariblock/pkg/domain-errors"
)

var (
	walletPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	txHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
)

// WalletAddress is an EVM account address in canonical lower-case form.
// Invariant: "0x" followed by exactly 40 hex digits.
//
// Usage: construct via ParseWalletAddress at trust boundaries; checksum
// casing is folded so the same account always maps to the same key.
type WalletAddress string

// ParseWalletAddress validates and canonicalizes an address.
//
// Errors: returns CodeInvalidInput when empty or malformed.
func ParseWalletAddress(s string) (WalletAddress, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "wallet address cannot be empty")
	}
	if !walletPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "wallet address must be 0x followed by 40 hex characters")
	}
	return WalletAddress(s), nil
}

func (w WalletAddress) String() string {
	return string(w)
}

func (w WalletAddress) IsNil() bool {
	return w == ""
}

// TxHash is a blockchain transaction hash and the global idempotency key for
// donations. Invariant: "0x" followed by exactly 64 lower-case hex digits.
type TxHash string

// ParseTxHash validates and canonicalizes a transaction hash.
func ParseTxHash(s string) (TxHash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "transaction hash cannot be empty")
	}
	if !txHashPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "transaction hash must be 0x followed by 64 hex characters")
	}
	return TxHash(s), nil
}

func (h TxHash) String() string {
	return string(h)
}
