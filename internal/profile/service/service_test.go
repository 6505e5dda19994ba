package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"chariblock/internal/platform/metrics"
	"chariblock/internal/profile/models"
	"chariblock/internal/storage/memory"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/audit/publishers/compliance"
	auditmemory "chariblock/pkg/platform/audit/store/memory"
	"chariblock/pkg/requestcontext"
)

const wallet = "0xAbCdEf0123456789abcdef0123456789ABCDEF01"

type ProfileServiceSuite struct {
	suite.Suite
	store  *memory.Store
	audits *auditmemory.InMemoryStore
	svc    *Service
	ctx    context.Context
	now    time.Time
}

func TestProfileServiceSuite(t *testing.T) {
	suite.Run(t, new(ProfileServiceSuite))
}

func (s *ProfileServiceSuite) SetupTest() {
	s.store = memory.New()
	s.audits = auditmemory.NewInMemoryStore()
	s.svc = New(s.store,
		WithAuditPublisher(compliance.New(s.audits)),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())),
	)
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ProfileServiceSuite) createRequest() *models.CreateProfileRequest {
	return &models.CreateProfileRequest{
		WalletAddress: wallet,
		Name:          " Ada ",
		Email:         "ada@example.org",
		ProfileType:   "donor",
	}
}

func (s *ProfileServiceSuite) TestCreate() {
	s.Run("canonicalizes the wallet and stores the profile", func() {
		p, err := s.svc.Create(s.ctx, s.createRequest())
		s.Require().NoError(err)
		s.Equal(id.WalletAddress("0xabcdef0123456789abcdef0123456789abcdef01"), p.WalletAddress)
		s.Equal("Ada", p.Name)
		s.Equal(models.KindDonor, p.Kind)
		s.False(p.Verified)
		s.Equal(s.now, p.CreatedAt)

		events, err := s.audits.ListRecent(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventProfileCreated), events[0].Action)
	})

	s.Run("duplicate wallet is rejected regardless of casing", func() {
		req := s.createRequest()
		req.WalletAddress = "0xabcdef0123456789abcdef0123456789abcdef01"
		_, err := s.svc.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateKey))
	})

	s.Run("invalid wallet", func() {
		req := s.createRequest()
		req.WalletAddress = "0x123"
		_, err := s.svc.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown profile type", func() {
		req := s.createRequest()
		req.WalletAddress = "0x" + "1234567890123456789012345678901234567890"
		req.ProfileType = "admin"
		_, err := s.svc.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ProfileServiceSuite) TestGet() {
	_, err := s.svc.Create(s.ctx, s.createRequest())
	s.Require().NoError(err)

	p, err := s.svc.Get(s.ctx, "0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	s.Require().NoError(err)
	s.Equal("Ada", p.Name)

	_, err = s.svc.Get(s.ctx, "0x"+"9999999999999999999999999999999999999999")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ProfileServiceSuite) TestUpdate() {
	_, err := s.svc.Create(s.ctx, s.createRequest())
	s.Require().NoError(err)

	later := s.now.Add(time.Hour)
	ctx := requestcontext.WithTime(s.ctx, later)

	s.Run("partial update leaves other fields", func() {
		kind := "charity_creator"
		p, err := s.svc.Update(ctx, wallet, &models.UpdateProfileRequest{ProfileType: &kind})
		s.Require().NoError(err)
		s.Equal(models.KindCharityCreator, p.Kind)
		s.Equal("Ada", p.Name)
		s.Equal(later, p.UpdatedAt)
		s.Equal(s.now, p.CreatedAt)
	})

	s.Run("invalid email is rejected and nothing changes", func() {
		bad := "not-an-email"
		_, err := s.svc.Update(ctx, wallet, &models.UpdateProfileRequest{Email: &bad})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		p, err := s.svc.Get(ctx, wallet)
		s.Require().NoError(err)
		s.Equal("ada@example.org", p.Email)
	})

	s.Run("missing profile", func() {
		name := "Bob"
		_, err := s.svc.Update(ctx, "0x"+"9999999999999999999999999999999999999999", &models.UpdateProfileRequest{Name: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
