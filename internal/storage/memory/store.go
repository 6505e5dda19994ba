package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	authmodels "chariblock/internal/auth/models"
	charitymodels "chariblock/internal/charity/models"
	donationmodels "chariblock/internal/donation/models"
	profilemodels "chariblock/internal/profile/models"
	"chariblock/internal/storage"
	id "chariblock/pkg/domain"
	"chariblock/pkg/platform/sentinel"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every entity in process memory. A single RWMutex guards all
// maps; RunInTx holds the write lock for the whole unit of work so readers
// never observe half of it.
type Store struct {
	mu      sync.RWMutex
	timeout time.Duration

	profiles    map[id.WalletAddress]profilemodels.Profile
	charities   map[id.CharityID]charitymodels.Charity
	donations   map[id.DonationID]donationmodels.Donation
	txHashes    map[id.TxHash]id.DonationID
	credentials map[string]authmodels.Credential

	nextCharityID  id.CharityID
	nextDonationID id.DonationID
}

// Option configures a Store.
type Option func(*Store)

// WithTxTimeout overrides storage.DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		timeout:     storage.DefaultTxTimeout,
		profiles:    make(map[id.WalletAddress]profilemodels.Profile),
		charities:   make(map[id.CharityID]charitymodels.Charity),
		donations:   make(map[id.DonationID]donationmodels.Donation),
		txHashes:    make(map[id.TxHash]id.DonationID),
		credentials: make(map[string]authmodels.Credential),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type txKey struct{}

// unitOfWork journals undo steps for the mutations made inside RunInTx.
type unitOfWork struct {
	owner *Store
	undo  []func()
}

func (s *Store) txFrom(ctx context.Context) *unitOfWork {
	if u, ok := ctx.Value(txKey{}).(*unitOfWork); ok && u.owner == s {
		return u
	}
	return nil
}

// RunInTx runs fn while holding the store's write lock. Nested calls join
// the outer unit of work.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin unit of work: %w: %v", sentinel.ErrUnavailable, err)
	}
	// An earlier caller deadline still wins
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin unit of work: %w: %v", sentinel.ErrUnavailable, err)
	}

	u := &unitOfWork{owner: s}
	if err := fn(context.WithValue(ctx, txKey{}, u)); err != nil {
		for i := len(u.undo) - 1; i >= 0; i-- {
			u.undo[i]()
		}
		return err
	}
	return nil
}

// write acquires the write lock unless ctx already holds it, and returns
// the unit of work to journal into (nil outside a transaction).
func (s *Store) write(ctx context.Context) (*unitOfWork, func()) {
	if u := s.txFrom(ctx); u != nil {
		return u, func() {}
	}
	s.mu.Lock()
	return nil, s.mu.Unlock
}

func (s *Store) read(ctx context.Context) func() {
	if s.txFrom(ctx) != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (u *unitOfWork) onRollback(fn func()) {
	if u != nil {
		u.undo = append(u.undo, fn)
	}
}

func (s *Store) CreateProfile(ctx context.Context, p *profilemodels.Profile) error {
	u, unlock := s.write(ctx)
	defer unlock()
	if _, ok := s.profiles[p.WalletAddress]; ok {
		return fmt.Errorf("create profile %s: %w", p.WalletAddress, sentinel.ErrDuplicateKey)
	}
	s.profiles[p.WalletAddress] = *p
	u.onRollback(func() { delete(s.profiles, p.WalletAddress) })
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *profilemodels.Profile) error {
	u, unlock := s.write(ctx)
	defer unlock()
	prev, ok := s.profiles[p.WalletAddress]
	if !ok {
		return fmt.Errorf("update profile %s: %w", p.WalletAddress, sentinel.ErrNotFound)
	}
	updated := *p
	updated.CreatedAt = prev.CreatedAt
	s.profiles[p.WalletAddress] = updated
	u.onRollback(func() { s.profiles[p.WalletAddress] = prev })
	return nil
}

func (s *Store) FindProfile(ctx context.Context, wallet id.WalletAddress) (*profilemodels.Profile, error) {
	defer s.read(ctx)()
	p, ok := s.profiles[wallet]
	if !ok {
		return nil, fmt.Errorf("find profile %s: %w", wallet, sentinel.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) CreateCharity(ctx context.Context, c *charitymodels.Charity) error {
	u, unlock := s.write(ctx)
	defer unlock()
	if _, ok := s.profiles[c.CreatorWallet]; !ok {
		return fmt.Errorf("create charity for %s: %w", c.CreatorWallet, sentinel.ErrReferenceNotFound)
	}
	s.nextCharityID++
	c.ID = s.nextCharityID
	s.charities[c.ID] = *c
	charityID := c.ID
	u.onRollback(func() {
		delete(s.charities, charityID)
		s.nextCharityID--
	})
	return nil
}

func (s *Store) FindCharity(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error) {
	defer s.read(ctx)()
	c, ok := s.charities[charityID]
	if !ok {
		return nil, fmt.Errorf("find charity %d: %w", charityID, sentinel.ErrNotFound)
	}
	return &c, nil
}

// LockCharity is FindCharity; inside RunInTx the store-wide lock is already
// exclusive.
func (s *Store) LockCharity(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error) {
	return s.FindCharity(ctx, charityID)
}

func (s *Store) ListCharities(ctx context.Context, filter charitymodels.Filter) ([]*charitymodels.Charity, error) {
	defer s.read(ctx)()
	out := make([]*charitymodels.Charity, 0, len(s.charities))
	for _, c := range s.charities {
		if filter.Matches(&c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) AddRaisedAmount(ctx context.Context, charityID id.CharityID, delta decimal.Decimal, updatedAt time.Time) (decimal.Decimal, error) {
	u, unlock := s.write(ctx)
	defer unlock()
	prev, ok := s.charities[charityID]
	if !ok {
		return decimal.Zero, fmt.Errorf("add raised amount to charity %d: %w", charityID, sentinel.ErrNotFound)
	}
	next := prev
	next.RaisedAmount = prev.RaisedAmount.Add(delta)
	next.UpdatedAt = updatedAt
	s.charities[charityID] = next
	u.onRollback(func() { s.charities[charityID] = prev })
	return next.RaisedAmount, nil
}

func (s *Store) UpdateCharityStatus(ctx context.Context, charityID id.CharityID, status charitymodels.Status, approvedAt *time.Time, updatedAt time.Time) error {
	u, unlock := s.write(ctx)
	defer unlock()
	prev, ok := s.charities[charityID]
	if !ok {
		return fmt.Errorf("update charity %d status: %w", charityID, sentinel.ErrNotFound)
	}
	next := prev
	next.Status = status
	next.ApprovedAt = approvedAt
	next.UpdatedAt = updatedAt
	s.charities[charityID] = next
	u.onRollback(func() { s.charities[charityID] = prev })
	return nil
}

func (s *Store) CreateDonation(ctx context.Context, d *donationmodels.Donation) error {
	u, unlock := s.write(ctx)
	defer unlock()
	if _, ok := s.charities[d.CharityID]; !ok {
		return fmt.Errorf("create donation for charity %d: %w", d.CharityID, sentinel.ErrReferenceNotFound)
	}
	if _, ok := s.txHashes[d.TxHash]; ok {
		return fmt.Errorf("create donation %s: %w", d.TxHash, sentinel.ErrDuplicateKey)
	}
	s.nextDonationID++
	d.ID = s.nextDonationID
	s.donations[d.ID] = *d
	s.txHashes[d.TxHash] = d.ID
	donationID, txHash := d.ID, d.TxHash
	u.onRollback(func() {
		delete(s.donations, donationID)
		delete(s.txHashes, txHash)
		s.nextDonationID--
	})
	return nil
}

func (s *Store) FindDonation(ctx context.Context, donationID id.DonationID) (*donationmodels.Donation, error) {
	defer s.read(ctx)()
	d, ok := s.donations[donationID]
	if !ok {
		return nil, fmt.Errorf("find donation %d: %w", donationID, sentinel.ErrNotFound)
	}
	d.CharityName = s.charities[d.CharityID].Name
	return &d, nil
}

func (s *Store) DonationExists(ctx context.Context, txHash id.TxHash) (bool, error) {
	defer s.read(ctx)()
	_, ok := s.txHashes[txHash]
	return ok, nil
}

func (s *Store) ListDonations(ctx context.Context, filter donationmodels.Filter) ([]*donationmodels.Donation, error) {
	defer s.read(ctx)()
	out := make([]*donationmodels.Donation, 0)
	for _, d := range s.donations {
		if filter.Matches(&d) {
			d := d
			d.CharityName = s.charities[d.CharityID].Name
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CountDonations(ctx context.Context, charityID id.CharityID) (int, error) {
	defer s.read(ctx)()
	n := 0
	for _, d := range s.donations {
		if d.CharityID == charityID && d.Confirmed {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateCredential(ctx context.Context, c *authmodels.Credential) error {
	u, unlock := s.write(ctx)
	defer unlock()
	if _, ok := s.credentials[c.Username]; ok {
		return fmt.Errorf("create credential %s: %w", c.Username, sentinel.ErrDuplicateKey)
	}
	if _, ok := s.profiles[c.WalletAddress]; !ok {
		return fmt.Errorf("create credential for %s: %w", c.WalletAddress, sentinel.ErrReferenceNotFound)
	}
	s.credentials[c.Username] = *c
	username := c.Username
	u.onRollback(func() { delete(s.credentials, username) })
	return nil
}

func (s *Store) FindCredential(ctx context.Context, username string) (*authmodels.Credential, error) {
	defer s.read(ctx)()
	c, ok := s.credentials[username]
	if !ok {
		return nil, fmt.Errorf("find credential %s: %w", username, sentinel.ErrNotFound)
	}
	return &c, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
