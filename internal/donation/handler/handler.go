package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"chariblock/internal/donation/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/httputil"
	"chariblock/pkg/requestcontext"
)

// Service defines the interface for donation operations.
type Service interface {
	RecordDonation(ctx context.Context, req models.RecordRequest) (*models.RecordResult, error)
	Get(ctx context.Context, donationID id.DonationID) (*models.Donation, error)
	List(ctx context.Context, q models.ListQuery) ([]*models.Donation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/donations", h.HandleList)
	r.Get("/donations/{id}", h.HandleGet)
}

// RegisterWrites mounts routes that may be gated behind a session.
func (h *Handler) RegisterWrites(r chi.Router) {
	r.Post("/donations", h.HandleCreate)
}

// HandleCreate handles POST /donations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, ok := httputil.DecodeAndPrepare[models.CreateDonationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req, err := body.ToRecordRequest()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if session := requestcontext.Wallet(ctx); session != "" && session != req.DonorAddress {
		h.logger.WarnContext(ctx, "donation recorded for another wallet",
			"request_id", requestID,
			"donor", req.DonorAddress,
			"session_wallet", session,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "donorAddress must match the session wallet"))
		return
	}

	result, err := h.service.RecordDonation(ctx, req)
	if err != nil {
		// The ledger logs its own rejections.
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &RecordResponse{
		Donation:     FromDonation(result.Donation),
		RaisedAmount: result.RaisedAmount,
	})
}

// HandleGet handles GET /donations/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donationID, err := id.ParseDonationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	donation, err := h.service.Get(ctx, donationID)
	if err != nil {
		h.logFailure(ctx, "get donation failed", err, "donation_id", donationID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDonation(donation))
}

// HandleList handles GET /donations.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	donations, err := h.service.List(ctx, models.ListQuery{
		CharityID:    httputil.QueryValue(q, "charityId"),
		DonorAddress: httputil.QueryValue(q, "donorAddress"),
	})
	if err != nil {
		h.logFailure(ctx, "list donations failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]*DonationResponse, 0, len(donations))
	for _, d := range donations {
		out = append(out, FromDonation(d))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

type DonationResponse struct {
	ID           int64           `json:"id"`
	CharityID    int64           `json:"charityId"`
	CharityName  string          `json:"charityName"`
	DonorAddress string          `json:"donorAddress"`
	Amount       decimal.Decimal `json:"amount"`
	TxHash       string          `json:"txHash"`
	BlockNumber  *int64          `json:"blockNumber"`
	Confirmed    bool            `json:"confirmed"`
	CreatedAt    time.Time       `json:"createdAt"`
	ConfirmedAt  *time.Time      `json:"confirmedAt"`
}

func FromDonation(d *models.Donation) *DonationResponse {
	return &DonationResponse{
		ID:           int64(d.ID),
		CharityID:    int64(d.CharityID),
		CharityName:  d.CharityName,
		DonorAddress: d.DonorAddress.String(),
		Amount:       d.Amount,
		TxHash:       d.TxHash.String(),
		BlockNumber:  d.BlockNumber,
		Confirmed:    d.Confirmed,
		CreatedAt:    d.CreatedAt,
		ConfirmedAt:  d.ConfirmedAt,
	}
}

// RecordResponse is the body of a successful POST /donations.
type RecordResponse struct {
	Donation     *DonationResponse `json:"donation"`
	RaisedAmount decimal.Decimal   `json:"raisedAmount"`
}
