package service

import (
	"context"
	"errors"
	"log/slog"

	"chariblock/internal/platform/metrics"
	"chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/sentinel"
	"chariblock/pkg/requestcontext"
)

// Store is the subset of the entity store the profile service uses.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, p *models.Profile) error
	FindProfile(ctx context.Context, wallet id.WalletAddress) (*models.Profile, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages wallet profiles.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a profile for a wallet. A wallet can hold one profile.
func (s *Service) Create(ctx context.Context, req *models.CreateProfileRequest) (*models.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	wallet, err := id.ParseWalletAddress(req.WalletAddress)
	if err != nil {
		return nil, err
	}
	kind, err := models.ParseKind(req.ProfileType)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	profile := &models.Profile{
		WalletAddress: wallet,
		Name:          req.Name,
		Email:         req.Email,
		Kind:          kind,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateProfile(txCtx, profile); err != nil {
			if errors.Is(err, sentinel.ErrDuplicateKey) {
				return dErrors.New(dErrors.CodeDuplicateKey, "profile with this wallet address already exists")
			}
			return wrapStoreErr(err, "failed to create profile")
		}
		return s.emit(txCtx, audit.Event{
			Action: string(audit.EventProfileCreated),
			Wallet: wallet,
			Status: string(kind),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile created",
		"wallet", wallet,
		"profile_type", kind,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementProfilesCreated()
	}
	return profile, nil
}

// Get returns the profile for a wallet.
func (s *Service) Get(ctx context.Context, walletAddress string) (*models.Profile, error) {
	wallet, err := id.ParseWalletAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.FindProfile(ctx, wallet)
	if err != nil {
		return nil, wrapProfileErr(err, "failed to load profile")
	}
	return profile, nil
}

// Update applies a partial update. The verified flag is never client-settable.
func (s *Service) Update(ctx context.Context, walletAddress string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	wallet, err := id.ParseWalletAddress(walletAddress)
	if err != nil {
		return nil, err
	}
	changes, err := req.Changes()
	if err != nil {
		return nil, err
	}

	var updated *models.Profile
	err = s.store.RunInTx(ctx, func(txCtx context.Context) error {
		profile, err := s.store.FindProfile(txCtx, wallet)
		if err != nil {
			return wrapProfileErr(err, "failed to load profile")
		}
		changes.Apply(profile, requestcontext.Now(txCtx))
		if err := s.store.UpdateProfile(txCtx, profile); err != nil {
			return wrapProfileErr(err, "failed to update profile")
		}
		updated = profile
		return s.emit(txCtx, audit.Event{
			Action: string(audit.EventProfileUpdated),
			Wallet: wallet,
			Status: string(profile.Kind),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.IP = requestcontext.ClientIP(ctx)
	if actor := requestcontext.Wallet(ctx); actor != "" && actor != event.Wallet {
		event.ActorID = actor.String()
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func wrapProfileErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return wrapStoreErr(err, msg)
}

func wrapStoreErr(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store temporarily unavailable, retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
