package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chariblock/internal/charity/metrics"
	"chariblock/internal/charity/models"
	"chariblock/internal/documents"
	profilemodels "chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/sentinel"
	"chariblock/pkg/requestcontext"
)

// Store is the subset of the entity store the charity service uses.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindProfile(ctx context.Context, wallet id.WalletAddress) (*profilemodels.Profile, error)
	CreateCharity(ctx context.Context, c *models.Charity) error
	FindCharity(ctx context.Context, charityID id.CharityID) (*models.Charity, error)
	LockCharity(ctx context.Context, charityID id.CharityID) (*models.Charity, error)
	ListCharities(ctx context.Context, filter models.Filter) ([]*models.Charity, error)
	UpdateCharityStatus(ctx context.Context, charityID id.CharityID, status models.Status, approvedAt *time.Time, updatedAt time.Time) error
	CountDonations(ctx context.Context, charityID id.CharityID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service onboards charities and runs their review lifecycle.
type Service struct {
	store          Store
	uploader       documents.Uploader
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, uploader documents.Uploader, opts ...Option) *Service {
	s := &Service{
		store:    store,
		uploader: uploader,
		logger:   slog.Default(),
		tracer:   otel.Tracer("chariblock/charity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates a submission, pins both supporting documents and stores
// the charity as pending. Nothing is written if either upload fails.
func (s *Service) Create(ctx context.Context, req *models.CreateCharityRequest) (*models.Charity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	wallet, err := id.ParseWalletAddress(req.WalletAddress)
	if err != nil {
		return nil, err
	}
	creatorWallet, err := id.ParseWalletAddress(req.CreatorWallet)
	if err != nil {
		return nil, err
	}
	target, err := req.Target()
	if err != nil {
		return nil, err
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindProfile(ctx, creatorWallet); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeReferenceNotFound, "creator profile not found")
		}
		return nil, wrapStoreErr(err, "failed to load creator profile")
	}

	govID, approval, err := s.uploadDocuments(ctx, req.GovIDFile, req.ApprovalDocFile)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	charity := &models.Charity{
		Name:          req.Name,
		Description:   req.Description,
		WalletAddress: wallet,
		TargetAmount:  target,
		RaisedAmount:  decimal.Zero,
		Category:      category,
		Status:        models.StatusPending,
		CreatorName:   req.CreatorName,
		CreatorEmail:  req.CreatorEmail,
		CreatorWallet: creatorWallet,
		GovIDDocument: govID,
		ApprovalDoc:   approval,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateCharity(txCtx, charity); err != nil {
			if errors.Is(err, sentinel.ErrReferenceNotFound) {
				return dErrors.New(dErrors.CodeReferenceNotFound, "creator profile not found")
			}
			return wrapStoreErr(err, "failed to create charity")
		}
		return s.emit(txCtx, audit.Event{
			Action:    string(audit.EventCharityCreated),
			Wallet:    creatorWallet,
			CharityID: charity.ID,
			Subject:   charity.Name,
			Amount:    target.String(),
			Status:    string(models.StatusPending),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "charity created",
		"charity_id", charity.ID,
		"creator_wallet", creatorWallet,
		"category", category,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return charity, nil
}

func (s *Service) uploadDocuments(ctx context.Context, govID, approval *models.Attachment) (models.Document, models.Document, error) {
	var govDoc, approvalDoc models.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.upload(gctx, "gov_id", govID)
		govDoc = doc
		return err
	})
	g.Go(func() error {
		doc, err := s.upload(gctx, "approval_doc", approval)
		approvalDoc = doc
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "document upload failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Document{}, models.Document{}, dErrors.Wrap(err, dErrors.CodeUploadFailed, "failed to upload documents")
	}
	return govDoc, approvalDoc, nil
}

func (s *Service) upload(ctx context.Context, kind string, a *models.Attachment) (models.Document, error) {
	pinned, err := s.uploader.Upload(ctx, documents.Document{
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Bytes:       a.Bytes,
	})
	if s.metrics != nil {
		if err != nil {
			s.metrics.IncrementUpload("failed")
		} else {
			s.metrics.IncrementUpload("ok")
		}
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("upload %s: %w", kind, err)
	}
	return models.Document{Hash: pinned.Hash, URL: pinned.URL}, nil
}

// SetStatus approves or rejects a pending charity. Approved and rejected are
// terminal.
func (s *Service) SetStatus(ctx context.Context, charityID id.CharityID, status string) (_ *models.Charity, err error) {
	ctx, span := s.tracer.Start(ctx, "charity.SetStatus",
		trace.WithAttributes(attribute.Int64("charity.id", int64(charityID))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	target, err := models.ParseTargetStatus(status)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("charity.status", string(target)))

	var updated *models.Charity
	err = s.store.RunInTx(ctx, func(txCtx context.Context) error {
		charity, err := s.store.LockCharity(txCtx, charityID)
		if err != nil {
			return wrapCharityErr(err, "failed to load charity")
		}
		if charity.Status.IsTerminal() {
			return dErrors.New(dErrors.CodeAlreadyFinalized,
				fmt.Sprintf("charity is already %s", charity.Status))
		}

		now := requestcontext.Now(txCtx)
		var approvedAt *time.Time
		if target == models.StatusApproved {
			approvedAt = &now
		}
		if err := s.store.UpdateCharityStatus(txCtx, charityID, target, approvedAt, now); err != nil {
			return wrapCharityErr(err, "failed to update charity status")
		}
		charity.Status = target
		charity.ApprovedAt = approvedAt
		charity.UpdatedAt = now
		updated = charity

		action := audit.EventCharityRejected
		if target == models.StatusApproved {
			action = audit.EventCharityApproved
		}
		return s.emit(txCtx, audit.Event{
			Action:    string(action),
			Wallet:    charity.CreatorWallet,
			CharityID: charityID,
			Subject:   charity.Name,
			Status:    string(target),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "charity status changed",
		"charity_id", charityID,
		"status", target,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementStatusChange(string(target))
	}
	return updated, nil
}

// Get returns one charity.
func (s *Service) Get(ctx context.Context, charityID id.CharityID) (*models.Charity, error) {
	charity, err := s.store.FindCharity(ctx, charityID)
	if err != nil {
		return nil, wrapCharityErr(err, "failed to load charity")
	}
	return charity, nil
}

// List returns the charities matching q, newest first.
func (s *Service) List(ctx context.Context, q models.ListQuery) ([]*models.Charity, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}
	charities, err := s.store.ListCharities(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list charities")
	}
	return charities, nil
}

// Stats reports fundraising progress for one charity.
func (s *Service) Stats(ctx context.Context, charityID id.CharityID) (*models.Stats, error) {
	charity, err := s.store.FindCharity(ctx, charityID)
	if err != nil {
		return nil, wrapCharityErr(err, "failed to load charity")
	}
	count, err := s.store.CountDonations(ctx, charityID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to count donations")
	}
	stats := models.NewStats(charity, count)
	return &stats, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.IP = requestcontext.ClientIP(ctx)
	if actor := requestcontext.Wallet(ctx); actor != "" {
		event.ActorID = actor.String()
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func wrapCharityErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "charity not found")
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
