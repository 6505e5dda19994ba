package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	charitymodels "chariblock/internal/charity/models"
	"chariblock/internal/donation/metrics"
	"chariblock/internal/donation/models"
	profilemodels "chariblock/internal/profile/models"
	"chariblock/internal/storage/memory"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/audit/publishers/compliance"
	auditmemory "chariblock/pkg/platform/audit/store/memory"
	"chariblock/pkg/platform/sentinel"
	"chariblock/pkg/requestcontext"
)

const (
	creator = id.WalletAddress("0x1111111111111111111111111111111111111111")
	donor   = id.WalletAddress("0x2222222222222222222222222222222222222222")
)

func txHash(n int) id.TxHash {
	return id.TxHash(fmt.Sprintf("0x%064x", n))
}

type LedgerSuite struct {
	suite.Suite
	store   *memory.Store
	audits  *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	svc     *Service
	ctx     context.Context
	now     time.Time
	charity id.CharityID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.store = memory.New()
	s.audits = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.svc = New(s.store,
		WithAuditPublisher(compliance.New(s.audits)),
		WithMetrics(s.metrics),
	)
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.charity = s.seedCharity("Clean Water")
}

func (s *LedgerSuite) seedCharity(name string) id.CharityID {
	if _, err := s.store.FindProfile(s.ctx, creator); err != nil {
		s.Require().NoError(s.store.CreateProfile(s.ctx, &profilemodels.Profile{
			WalletAddress: creator,
			Name:          "Grace",
			Email:         "grace@example.org",
			Kind:          profilemodels.KindCharityCreator,
			CreatedAt:     s.now,
			UpdatedAt:     s.now,
		}))
	}
	c := &charitymodels.Charity{
		Name:          name,
		Description:   "d",
		WalletAddress: creator,
		TargetAmount:  decimal.NewFromInt(100),
		RaisedAmount:  decimal.Zero,
		Category:      charitymodels.CategoryEnvironment,
		Status:        charitymodels.StatusApproved,
		CreatorWallet: creator,
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	s.Require().NoError(s.store.CreateCharity(s.ctx, c))
	return c.ID
}

func (s *LedgerSuite) record(charityID id.CharityID, amount string, hash id.TxHash) (*models.RecordResult, error) {
	return s.svc.RecordDonation(s.ctx, models.RecordRequest{
		CharityID:    charityID,
		DonorAddress: donor,
		Amount:       decimal.RequireFromString(amount),
		TxHash:       hash,
	})
}

func (s *LedgerSuite) raised(charityID id.CharityID) decimal.Decimal {
	c, err := s.store.FindCharity(s.ctx, charityID)
	s.Require().NoError(err)
	return c.RaisedAmount
}

func (s *LedgerSuite) TestRecordThenDuplicateKeepsTotal() {
	res, err := s.record(s.charity, "40", txHash(1))
	s.Require().NoError(err)
	s.Equal("40", res.RaisedAmount.String())
	s.True(res.Donation.Confirmed)
	s.Require().NotNil(res.Donation.ConfirmedAt)
	s.Equal(s.now, *res.Donation.ConfirmedAt)
	s.Equal("Clean Water", res.Donation.CharityName)

	res, err = s.record(s.charity, "25", txHash(2))
	s.Require().NoError(err)
	s.Equal("65", res.RaisedAmount.String())

	_, err = s.record(s.charity, "25", txHash(2))
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateTransaction))
	s.True(s.raised(s.charity).Equal(decimal.NewFromInt(65)))

	donations, err := s.store.ListDonations(s.ctx, models.Filter{CharityID: s.charity})
	s.Require().NoError(err)
	s.Len(donations, 2)

	s.InDelta(2, testutil.ToFloat64(s.metrics.Recorded), 0)
	s.InDelta(1, testutil.ToFloat64(s.metrics.Rejected.WithLabelValues(metrics.ReasonDuplicate)), 0)
}

func (s *LedgerSuite) TestDuplicateHashAcrossCharities() {
	other := s.seedCharity("Schools")
	_, err := s.record(s.charity, "10", txHash(1))
	s.Require().NoError(err)

	_, err = s.record(other, "10", txHash(1))
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateTransaction))
	s.True(s.raised(other).IsZero())
}

func (s *LedgerSuite) TestUnknownCharity() {
	_, err := s.record(9999, "10", txHash(1))
	s.True(dErrors.HasCode(err, dErrors.CodeCharityNotFound))

	exists, err := s.store.DonationExists(s.ctx, txHash(1))
	s.Require().NoError(err)
	s.False(exists)
	s.InDelta(1, testutil.ToFloat64(s.metrics.Rejected.WithLabelValues(metrics.ReasonUnknownCharity)), 0)
}

func (s *LedgerSuite) TestInvalidAmounts() {
	for _, amount := range []string{"0", "-5", "0.000000001"} {
		_, err := s.record(s.charity, amount, txHash(1))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount), amount)
	}
	s.True(s.raised(s.charity).IsZero())
}

func (s *LedgerSuite) TestConcurrentDonationsSumExactly() {
	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.record(s.charity, "1.5", txHash(i+1))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		s.Require().NoError(err)
	}

	s.True(s.raised(s.charity).Equal(decimal.RequireFromString("75")))
	donations, err := s.store.ListDonations(s.ctx, models.Filter{CharityID: s.charity})
	s.Require().NoError(err)
	s.Len(donations, n)
}

func (s *LedgerSuite) TestConcurrentSameHashCountsOnce() {
	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.record(s.charity, "5", txHash(42))
		}()
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case dErrors.HasCode(err, dErrors.CodeDuplicateTransaction):
			dup++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(n-1, dup)
	s.True(s.raised(s.charity).Equal(decimal.NewFromInt(5)))
}

func (s *LedgerSuite) TestAuditEventInSameUnitOfWork() {
	_, err := s.record(s.charity, "12.5", txHash(7))
	s.Require().NoError(err)

	events, err := s.audits.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventDonationRecorded), events[0].Action)
	s.Equal(s.charity, events[0].CharityID)
	s.Equal("12.5", events[0].Amount)
	s.Equal(donor, events[0].Wallet)
}

func (s *LedgerSuite) TestListIsFilteredAndStable() {
	other := s.seedCharity("Schools")
	for i, c := range []id.CharityID{s.charity, other, s.charity} {
		_, err := s.record(c, "1", txHash(i+1))
		s.Require().NoError(err)
	}

	first, err := s.svc.List(s.ctx, models.ListQuery{CharityID: s.charity.String()})
	s.Require().NoError(err)
	s.Len(first, 2)
	for _, d := range first {
		s.Equal(s.charity, d.CharityID)
	}
	second, err := s.svc.List(s.ctx, models.ListQuery{CharityID: s.charity.String()})
	s.Require().NoError(err)
	s.Equal(first, second)

	byDonor, err := s.svc.List(s.ctx, models.ListQuery{DonorAddress: "0x" + strings.ToUpper(string(donor[2:]))})
	s.Require().NoError(err)
	s.Len(byDonor, 3)

	_, err = s.svc.List(s.ctx, models.ListQuery{CharityID: "abc"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *LedgerSuite) TestGet() {
	res, err := s.record(s.charity, "3", txHash(3))
	s.Require().NoError(err)

	got, err := s.svc.Get(s.ctx, res.Donation.ID)
	s.Require().NoError(err)
	s.Equal(res.Donation.TxHash, got.TxHash)

	_, err = s.svc.Get(s.ctx, 9999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// failingStore fails the raised-amount update after the donation row was
// written, to prove the unit of work rolls back as a whole.
type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) AddRaisedAmount(context.Context, id.CharityID, decimal.Decimal, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, f.err
}

func (s *LedgerSuite) TestFailedUpdateRollsBackDonation() {
	s.Run("unavailable store is retryable", func() {
		svc := New(&failingStore{Store: s.store, err: fmt.Errorf("add raised: %w", sentinel.ErrUnavailable)})
		_, err := svc.RecordDonation(s.ctx, models.RecordRequest{
			CharityID: s.charity, DonorAddress: donor, Amount: decimal.NewFromInt(1), TxHash: txHash(9),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		exists, err := s.store.DonationExists(s.ctx, txHash(9))
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("unexpected failure is internal", func() {
		svc := New(&failingStore{Store: s.store, err: errors.New("disk on fire")})
		_, err := svc.RecordDonation(s.ctx, models.RecordRequest{
			CharityID: s.charity, DonorAddress: donor, Amount: decimal.NewFromInt(1), TxHash: txHash(10),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		exists, err := s.store.DonationExists(s.ctx, txHash(10))
		s.Require().NoError(err)
		s.False(exists)
	})

	s.True(s.raised(s.charity).IsZero())
}
