// Package service is the authentication capability: username/password
// credentials bound to a wallet profile, HS256 session tokens and logout by
// token revocation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chariblock/internal/auth/device"
	"chariblock/internal/auth/models"
	jwttoken "chariblock/internal/jwt_token"
	profilemodels "chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/sentinel"
	"chariblock/pkg/requestcontext"
)

// Store is the subset of the entity store the auth service uses.
type Store interface {
	FindProfile(ctx context.Context, wallet id.WalletAddress) (*profilemodels.Profile, error)
	CreateCredential(ctx context.Context, c *models.Credential) error
	FindCredential(ctx context.Context, username string) (*models.Credential, error)
}

type TokenIssuer interface {
	GenerateAccessToken(wallet, sessionID, deviceFingerprint string, expiresIn time.Duration) (*jwttoken.IssuedToken, error)
}

type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuditPublisher receives security events. Emitting never blocks a login.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

type Service struct {
	store          Store
	tokens         TokenIssuer
	trl            RevocationList
	logger         *slog.Logger
	auditPublisher AuditPublisher
	TokenTTL       time.Duration
	bcryptCost     int
	// dummyHash is compared against when the username does not exist so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

type Option func(*Service)

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

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.TokenTTL = ttl
		}
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(store Store, tokens TokenIssuer, trl RevocationList, opts ...Option) *Service {
	s := &Service{
		store:      store,
		tokens:     tokens,
		trl:        trl,
		logger:     slog.Default(),
		TokenTTL:   time.Hour,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	return s
}

// Signup creates a login for a wallet that already has a profile.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (*models.Credential, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	wallet, err := id.ParseWalletAddress(req.WalletAddress)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindProfile(ctx, wallet); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeReferenceNotFound, "profile not found for wallet")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	credential := &models.Credential{
		Username:      req.Username,
		PasswordHash:  string(hash),
		WalletAddress: wallet,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.CreateCredential(ctx, credential); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrDuplicateKey):
			return nil, dErrors.New(dErrors.CodeDuplicateKey, "username already taken")
		case errors.Is(err, sentinel.ErrReferenceNotFound):
			return nil, dErrors.New(dErrors.CodeReferenceNotFound, "profile not found for wallet")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credentials")
	}

	s.emit(ctx, audit.Event{
		Action:  string(audit.EventCredentialsCreated),
		Wallet:  wallet,
		Subject: req.Username,
	})
	s.logger.InfoContext(ctx, "credentials created",
		"wallet", wallet,
		"request_id", requestcontext.RequestID(ctx),
	)
	return credential, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	credential, err := s.store.FindCredential(ctx, req.Username)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credentials")
	}
	hash := s.dummyHash
	if credential != nil {
		hash = []byte(credential.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil || credential == nil {
		s.authFailure(ctx, "invalid_credentials", req.Username)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	sessionID := uuid.NewString()
	issued, err := s.tokens.GenerateAccessToken(credential.WalletAddress.String(), sessionID, device.Fingerprint(req.UserAgent), s.TokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	session := &models.Session{
		ID:            sessionID,
		TokenID:       issued.TokenID,
		WalletAddress: credential.WalletAddress,
		AccessToken:   issued.Token,
		IssuedAt:      requestcontext.Now(ctx),
		ExpiresAt:     issued.ExpiresAt,
		Device:        device.ParseUserAgent(req.UserAgent),
	}
	s.emit(ctx, audit.Event{
		Action:  string(audit.EventSessionCreated),
		Wallet:  credential.WalletAddress,
		Subject: sessionID,
		Reason:  session.Device,
	})
	s.logger.InfoContext(ctx, "session created",
		"wallet", credential.WalletAddress,
		"session_id", sessionID,
		"device", session.Device,
		"request_id", requestcontext.RequestID(ctx),
	)
	return session, nil
}

// Logout revokes the token bound to ctx. The revocation outlives the token,
// so TokenTTL is always enough.
func (s *Service) Logout(ctx context.Context) error {
	jti := requestcontext.TokenID(ctx)
	if jti == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "no active session")
	}
	if err := s.trl.RevokeToken(ctx, jti, s.TokenTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to add token to revocation list",
			"error", err,
			"jti", jti,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}

	wallet := requestcontext.Wallet(ctx)
	s.emit(ctx, audit.Event{
		Action:  string(audit.EventSessionRevoked),
		Wallet:  wallet,
		Subject: requestcontext.SessionID(ctx),
	})
	s.logger.InfoContext(ctx, "session revoked",
		"wallet", wallet,
		"session_id", requestcontext.SessionID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) authFailure(ctx context.Context, reason, username string) {
	s.logger.WarnContext(ctx, "authentication failed",
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:  string(audit.EventAuthFailed),
		Subject: username,
		Reason:  reason,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.IP = requestcontext.ClientIP(ctx)
	s.auditPublisher.Emit(ctx, event)
}
