package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chariblock/internal/profile/models"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/httputil"
	"chariblock/pkg/requestcontext"
)

// Service defines the interface for profile operations.
type Service interface {
	Create(ctx context.Context, req *models.CreateProfileRequest) (*models.Profile, error)
	Get(ctx context.Context, walletAddress string) (*models.Profile, error)
	Update(ctx context.Context, walletAddress string, req *models.UpdateProfileRequest) (*models.Profile, error)
}

// Handler wires profile endpoints to the profile service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public profile routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/profiles", h.HandleCreate)
	r.Get("/profiles/{walletAddress}", h.HandleGet)
}

// RegisterWrites mounts routes that may be gated behind a session.
func (h *Handler) RegisterWrites(r chi.Router) {
	r.Put("/profiles/{walletAddress}", h.HandleUpdate)
}

// HandleCreate handles POST /profiles.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	profile, err := h.service.Create(ctx, req)
	if err != nil {
		h.logFailure(ctx, "create profile failed", err, "wallet", req.WalletAddress)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromProfile(profile))
}

// HandleGet handles GET /profiles/{walletAddress}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet := chi.URLParam(r, "walletAddress")

	profile, err := h.service.Get(ctx, wallet)
	if err != nil {
		h.logFailure(ctx, "get profile failed", err, "wallet", wallet)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(profile))
}

// HandleUpdate handles PUT /profiles/{walletAddress}. With a session bound
// to the request, only the session's own wallet can be updated.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	wallet := chi.URLParam(r, "walletAddress")

	if owner := requestcontext.Wallet(ctx); owner != "" && !sameWallet(owner.String(), wallet) {
		h.logger.WarnContext(ctx, "profile update for another wallet",
			"request_id", requestID,
			"wallet", wallet,
			"session_wallet", owner,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot update another wallet's profile"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	profile, err := h.service.Update(ctx, wallet, req)
	if err != nil {
		h.logFailure(ctx, "update profile failed", err, "wallet", wallet)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(profile))
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

// sameWallet compares a canonical wallet with a raw path segment.
func sameWallet(canonical, raw string) bool {
	return canonical == strings.ToLower(strings.TrimSpace(raw))
}

// ProfileResponse is the JSON view of a profile.
type ProfileResponse struct {
	WalletAddress string    `json:"walletAddress"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	ProfileType   string    `json:"profileType"`
	IsVerified    bool      `json:"isVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func FromProfile(p *models.Profile) *ProfileResponse {
	return &ProfileResponse{
		WalletAddress: p.WalletAddress.String(),
		Name:          p.Name,
		Email:         p.Email,
		ProfileType:   string(p.Kind),
		IsVerified:    p.Verified,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
