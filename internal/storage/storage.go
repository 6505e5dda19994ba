// Package storage defines the entity store shared by the profile, charity,
// donation and auth services. Implementations live in the memory and
// postgres subpackages and must behave identically: services and tests can
// swap one for the other without rewiring business code.
package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	authmodels "chariblock/internal/auth/models"
	charitymodels "chariblock/internal/charity/models"
	donationmodels "chariblock/internal/donation/models"
	profilemodels "chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
)

// DefaultTxTimeout bounds every unit of work; a shorter caller deadline wins.
const DefaultTxTimeout = 5 * time.Second

// Store is the full entity store. Store methods called with a context
// returned inside RunInTx join that unit of work.
type Store interface {
	// RunInTx executes fn as one atomic unit of work. If fn returns an error
	// every mutation made through ctx is discarded.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateProfile(ctx context.Context, p *profilemodels.Profile) error
	UpdateProfile(ctx context.Context, p *profilemodels.Profile) error
	FindProfile(ctx context.Context, wallet id.WalletAddress) (*profilemodels.Profile, error)

	CreateCharity(ctx context.Context, c *charitymodels.Charity) error
	FindCharity(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error)
	LockCharity(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error)
	ListCharities(ctx context.Context, filter charitymodels.Filter) ([]*charitymodels.Charity, error)
	AddRaisedAmount(ctx context.Context, charityID id.CharityID, delta decimal.Decimal, updatedAt time.Time) (decimal.Decimal, error)
	UpdateCharityStatus(ctx context.Context, charityID id.CharityID, status charitymodels.Status, approvedAt *time.Time, updatedAt time.Time) error

	CreateDonation(ctx context.Context, d *donationmodels.Donation) error
	FindDonation(ctx context.Context, donationID id.DonationID) (*donationmodels.Donation, error)
	DonationExists(ctx context.Context, txHash id.TxHash) (bool, error)
	ListDonations(ctx context.Context, filter donationmodels.Filter) ([]*donationmodels.Donation, error)
	CountDonations(ctx context.Context, charityID id.CharityID) (int, error)

	CreateCredential(ctx context.Context, c *authmodels.Credential) error
	FindCredential(ctx context.Context, username string) (*authmodels.Credential, error)

	Close() error
}
