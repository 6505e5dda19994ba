// Package service implements the donation ledger: the only writer of
// Charity.RaisedAmount. A transaction hash is accepted at most once
// system-wide, and every accepted donation increases its charity's raised
// amount in the same unit of work that stores it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	charitymodels "chariblock/internal/charity/models"
	"chariblock/internal/donation/metrics"
	"chariblock/internal/donation/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/audit"
	"chariblock/pkg/platform/sentinel"
	"chariblock/pkg/requestcontext"
)

// Store is the subset of the entity store the ledger uses.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockCharity(ctx context.Context, charityID id.CharityID) (*charitymodels.Charity, error)
	AddRaisedAmount(ctx context.Context, charityID id.CharityID, delta decimal.Decimal, updatedAt time.Time) (decimal.Decimal, error)
	CreateDonation(ctx context.Context, d *models.Donation) error
	FindDonation(ctx context.Context, donationID id.DonationID) (*models.Donation, error)
	DonationExists(ctx context.Context, txHash id.TxHash) (bool, error)
	ListDonations(ctx context.Context, filter models.Filter) ([]*models.Donation, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service records and serves donations.
type Service struct {
	store          Store
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

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("chariblock/donation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordDonation stores a confirmed donation and adds its amount to the
// charity's raised amount atomically. The charity row is locked for the whole
// unit of work, so concurrent donations to one charity serialize.
func (s *Service) RecordDonation(ctx context.Context, req models.RecordRequest) (_ *models.RecordResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "donation.RecordDonation",
		trace.WithAttributes(
			attribute.Int64("charity.id", int64(req.CharityID)),
			attribute.String("donation.tx_hash", req.TxHash.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
			s.reject(ctx, req, err)
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveRecord(start)
		}
	}()

	if !req.Amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if err := id.CheckAmountPrecision(req.Amount); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, dErrors.MessageOf(err))
	}

	var result *models.RecordResult
	err = s.store.RunInTx(ctx, func(txCtx context.Context) error {
		charity, err := s.store.LockCharity(txCtx, req.CharityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeCharityNotFound, "charity not found")
			}
			return wrapStoreErr(err, "failed to load charity")
		}

		exists, err := s.store.DonationExists(txCtx, req.TxHash)
		if err != nil {
			return wrapStoreErr(err, "failed to check transaction hash")
		}
		if exists {
			return duplicateTransaction()
		}

		now := requestcontext.Now(txCtx)
		donation := &models.Donation{
			CharityID:    charity.ID,
			CharityName:  charity.Name,
			DonorAddress: req.DonorAddress,
			Amount:       req.Amount,
			TxHash:       req.TxHash,
			BlockNumber:  req.BlockNumber,
			Confirmed:    true,
			CreatedAt:    now,
			ConfirmedAt:  &now,
		}
		if err := s.store.CreateDonation(txCtx, donation); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrDuplicateKey):
				// Another charity's unit of work won the hash between the check and the insert.
				return duplicateTransaction()
			case errors.Is(err, sentinel.ErrReferenceNotFound):
				return dErrors.New(dErrors.CodeCharityNotFound, "charity not found")
			}
			return wrapStoreErr(err, "failed to store donation")
		}

		raised, err := s.store.AddRaisedAmount(txCtx, charity.ID, req.Amount, now)
		if err != nil {
			return wrapStoreErr(err, "failed to update raised amount")
		}

		result = &models.RecordResult{Donation: donation, RaisedAmount: raised}
		return s.emit(txCtx, audit.Event{
			Action:    string(audit.EventDonationRecorded),
			Wallet:    req.DonorAddress,
			CharityID: charity.ID,
			Subject:   req.TxHash.String(),
			Amount:    req.Amount.String(),
			Status:    "confirmed",
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("donation.id", int64(result.Donation.ID)))
	s.logger.InfoContext(ctx, "donation recorded",
		"donation_id", result.Donation.ID,
		"charity_id", req.CharityID,
		"tx_hash", req.TxHash,
		"amount", req.Amount.String(),
		"raised_amount", result.RaisedAmount.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRecorded(req.Amount)
	}
	return result, nil
}

func (s *Service) reject(ctx context.Context, req models.RecordRequest, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"charity_id", req.CharityID,
		"tx_hash", req.TxHash,
		"code", code,
		"request_id", requestcontext.RequestID(ctx),
	}
	if code == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "donation rejected", append(attrs, "error", err)...)
	} else {
		s.logger.WarnContext(ctx, "donation rejected", attrs...)
	}
	if s.metrics != nil {
		s.metrics.IncrementRejected(rejectReason(code))
	}
}

func rejectReason(code dErrors.Code) string {
	switch code {
	case dErrors.CodeDuplicateTransaction:
		return metrics.ReasonDuplicate
	case dErrors.CodeCharityNotFound:
		return metrics.ReasonUnknownCharity
	case dErrors.CodeInvalidAmount:
		return metrics.ReasonInvalidAmount
	case dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return metrics.ReasonInvalidInput
	case dErrors.CodeTimeout:
		return metrics.ReasonStoreUnavailable
	default:
		return metrics.ReasonInternal
	}
}

// Get returns one donation.
func (s *Service) Get(ctx context.Context, donationID id.DonationID) (*models.Donation, error) {
	donation, err := s.store.FindDonation(ctx, donationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donation not found")
		}
		return nil, wrapStoreErr(err, "failed to load donation")
	}
	return donation, nil
}

// List returns the donations matching q, newest first.
func (s *Service) List(ctx context.Context, q models.ListQuery) ([]*models.Donation, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}
	donations, err := s.store.ListDonations(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list donations")
	}
	return donations, nil
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

func duplicateTransaction() error {
	return dErrors.New(dErrors.CodeDuplicateTransaction, "donation with this transaction hash already exists")
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
