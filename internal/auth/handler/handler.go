package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chariblock/internal/auth/models"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/platform/httputil"
	"chariblock/pkg/requestcontext"
)

// Service defines the interface for authentication operations.
type Service interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.Credential, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error)
	Logout(ctx context.Context) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the unauthenticated routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/signup", h.HandleSignup)
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterSession mounts routes that need a bound session; callers wrap
// them with RequireSession.
func (h *Handler) RegisterSession(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
}

// HandleSignup handles POST /auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SignupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	credential, err := h.service.Signup(ctx, req)
	if err != nil {
		h.logFailure(ctx, "signup failed", err, "wallet", req.WalletAddress)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &SignupResponse{
		Username:      credential.Username,
		WalletAddress: credential.WalletAddress.String(),
		CreatedAt:     credential.CreatedAt,
	})
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	req.UserAgent = r.UserAgent()

	session, err := h.service.Login(ctx, req)
	if err != nil {
		// failed logins are logged by the service
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(session, requestcontext.Now(ctx)))
}

// HandleLogout handles POST /auth/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Logout(ctx); err != nil {
		h.logFailure(ctx, "logout failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

type SignupResponse struct {
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

type LoginResponse struct {
	AccessToken   string `json:"accessToken"`
	TokenType     string `json:"tokenType"`
	ExpiresIn     int64  `json:"expiresIn"`
	WalletAddress string `json:"walletAddress"`
	SessionID     string `json:"sessionId"`
	Device        string `json:"device"`
}

// FromSession renders a session; ExpiresIn is in whole seconds from now.
func FromSession(s *models.Session, now time.Time) *LoginResponse {
	expiresIn := int64(s.ExpiresAt.Sub(now) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &LoginResponse{
		AccessToken:   s.AccessToken,
		TokenType:     "Bearer",
		ExpiresIn:     expiresIn,
		WalletAddress: s.WalletAddress.String(),
		SessionID:     s.ID,
		Device:        s.Device,
	}
}
