package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (wrapped with
// fmt.Errorf) and services translate them into coded domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrDuplicateKey: a unique key (wallet address, tx hash, username) is taken
//   - ErrReferenceNotFound: a foreign key points at a missing row
//   - ErrInvalidState: row is in the wrong state for the requested mutation
//   - ErrUnavailable: backend temporarily unavailable or timed out
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrReferenceNotFound = errors.New("reference not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnavailable       = errors.New("unavailable")
)
