package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"chariblock/internal/charity/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/httputil"
	"chariblock/pkg/requestcontext"
)

// Service defines the interface for charity operations.
type Service interface {
	Create(ctx context.Context, req *models.CreateCharityRequest) (*models.Charity, error)
	SetStatus(ctx context.Context, charityID id.CharityID, status string) (*models.Charity, error)
	Get(ctx context.Context, charityID id.CharityID) (*models.Charity, error)
	List(ctx context.Context, q models.ListQuery) ([]*models.Charity, error)
	Stats(ctx context.Context, charityID id.CharityID) (*models.Stats, error)
}

type Handler struct {
	service        Service
	logger         *slog.Logger
	maxUploadBytes int64
}

// New creates a charity handler. maxUploadBytes caps the whole multipart
// body of a charity submission.
func New(service Service, logger *slog.Logger, maxUploadBytes int64) *Handler {
	return &Handler{service: service, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the read routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/charities", h.HandleList)
	r.Get("/charities/{id}", h.HandleGet)
	r.Get("/charities/{id}/stats", h.HandleStats)
}

// RegisterCreate mounts the multipart submission route. It must not sit
// behind a JSON content-type check.
func (h *Handler) RegisterCreate(r chi.Router) {
	r.Post("/charities", h.HandleCreate)
}

// RegisterReview mounts the review route. Callers gate it with the admin token.
func (h *Handler) RegisterReview(r chi.Router) {
	r.Put("/charities/{id}/status", h.HandleSetStatus)
}

// HandleCreate handles POST /charities (multipart/form-data).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := h.parseCreateForm(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid charity submission",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	charity, err := h.service.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "create charity failed", err, "wallet", req.WalletAddress)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCharity(charity))
}

func (h *Handler) parseCreateForm(w http.ResponseWriter, r *http.Request) (*models.CreateCharityRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "upload too large")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "expected a multipart form")
	}

	req := &models.CreateCharityRequest{
		Name:          httputil.FormValue(r, "name"),
		Description:   httputil.FormValue(r, "description"),
		WalletAddress: httputil.FormValue(r, "walletAddress"),
		TargetAmount:  httputil.FormValue(r, "targetAmount"),
		Category:      httputil.FormValue(r, "category"),
		CreatorName:   httputil.FormValue(r, "creatorName"),
		CreatorEmail:  httputil.FormValue(r, "creatorEmail"),
		CreatorWallet: httputil.FormValue(r, "creatorWallet"),
	}
	if req.CreatorWallet == "" {
		if session := requestcontext.Wallet(r.Context()); session != "" {
			req.CreatorWallet = session.String()
		}
	}

	var err error
	if req.GovIDFile, err = formFile(r, "govIdFile"); err != nil {
		return nil, err
	}
	if req.ApprovalDocFile, err = formFile(r, "approvalDocFile"); err != nil {
		return nil, err
	}
	return req, nil
}

// formFile reads an optional file part by its camelCase name or snake_case
// alias. A missing part yields nil.
func formFile(r *http.Request, name string) (*models.Attachment, error) {
	file, header, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		file, header, err = r.FormFile(httputil.SnakeName(name))
	}
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read "+name)
	}
	defer file.Close()
	return readAttachment(file, header)
}

func readAttachment(file multipart.File, header *multipart.FileHeader) (*models.Attachment, error) {
	buf, err := io.ReadAll(file)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read "+header.Filename)
	}
	return &models.Attachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Bytes:       buf,
	}, nil
}

// HandleSetStatus handles PUT /charities/{id}/status.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	charityID, err := id.ParseCharityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	charity, err := h.service.SetStatus(ctx, charityID, req.Status)
	if err != nil {
		h.logFailure(ctx, "set charity status failed", err, "charity_id", charityID, "status", req.Status)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCharity(charity))
}

// HandleGet handles GET /charities/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	charityID, err := id.ParseCharityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	charity, err := h.service.Get(ctx, charityID)
	if err != nil {
		h.logFailure(ctx, "get charity failed", err, "charity_id", charityID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCharity(charity))
}

// HandleList handles GET /charities.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	charities, err := h.service.List(ctx, models.ListQuery{
		Status:        httputil.QueryValue(q, "status"),
		Category:      httputil.QueryValue(q, "category"),
		CreatorWallet: httputil.QueryValue(q, "creatorWallet"),
	})
	if err != nil {
		h.logFailure(ctx, "list charities failed", err)
		httputil.WriteError(w, err)
		return
	}
	out := make([]*CharityResponse, 0, len(charities))
	for _, c := range charities {
		out = append(out, FromCharity(c))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleStats handles GET /charities/{id}/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	charityID, err := id.ParseCharityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.service.Stats(ctx, charityID)
	if err != nil {
		h.logFailure(ctx, "charity stats failed", err, "charity_id", charityID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &StatsResponse{
		CharityID:     int64(stats.CharityID),
		DonationCount: stats.DonationCount,
		RaisedAmount:  stats.RaisedAmount,
		TargetAmount:  stats.TargetAmount,
		PercentFunded: stats.PercentFunded,
	})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

type CreatorResponse struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress"`
}

type DocumentsResponse struct {
	GovID           string `json:"govId,omitempty"`
	GovIDHash       string `json:"govIdHash,omitempty"`
	ApprovalDoc     string `json:"approvalDoc,omitempty"`
	ApprovalDocHash string `json:"approvalDocHash,omitempty"`
}

// CharityResponse is the JSON view of a charity. Amounts are decimal strings.
type CharityResponse struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	WalletAddress string            `json:"walletAddress"`
	TargetAmount  decimal.Decimal   `json:"targetAmount"`
	RaisedAmount  decimal.Decimal   `json:"raisedAmount"`
	Category      string            `json:"category"`
	Status        string            `json:"status"`
	Creator       CreatorResponse   `json:"creator"`
	Documents     DocumentsResponse `json:"documents"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	ApprovedAt    *time.Time        `json:"approvedAt"`
}

func FromCharity(c *models.Charity) *CharityResponse {
	return &CharityResponse{
		ID:            int64(c.ID),
		Name:          c.Name,
		Description:   c.Description,
		WalletAddress: c.WalletAddress.String(),
		TargetAmount:  c.TargetAmount,
		RaisedAmount:  c.RaisedAmount,
		Category:      string(c.Category),
		Status:        string(c.Status),
		Creator: CreatorResponse{
			Name:          c.CreatorName,
			Email:         c.CreatorEmail,
			WalletAddress: c.CreatorWallet.String(),
		},
		Documents: DocumentsResponse{
			GovID:           c.GovIDDocument.URL,
			GovIDHash:       c.GovIDDocument.Hash,
			ApprovalDoc:     c.ApprovalDoc.URL,
			ApprovalDocHash: c.ApprovalDoc.Hash,
		},
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		ApprovedAt: c.ApprovedAt,
	}
}

type StatsResponse struct {
	CharityID     int64           `json:"charityId"`
	DonationCount int             `json:"donationCount"`
	RaisedAmount  decimal.Decimal `json:"raisedAmount"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	PercentFunded decimal.Decimal `json:"percentFunded"`
}
