package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "chariblock/pkg/domain"
	request "chariblock/pkg/platform/middleware/request"
	"chariblock/pkg/requestcontext"
)

// JWTValidator defines the interface for validating access tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Wallet    id.WalletAddress
	SessionID string
	JTI       string // JWT ID for revocation tracking
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireSession rejects requests without a valid, unrevoked bearer token and
// binds the token's wallet to the request context.
func RequireSession(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, status, desc := authenticate(ctx, token, validator, revocationChecker, logger)
			if claims == nil {
				code := "unauthorized"
				if status == http.StatusInternalServerError {
					code = "internal_error"
				}
				writeJSONError(w, status, code, desc)
				return
			}

			ctx = requestcontext.WithSession(ctx, claims.Wallet, claims.SessionID, claims.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession binds the session when a valid token is presented and lets
// anonymous requests through. An invalid token is still rejected so callers
// are not silently downgraded.
func OptionalSession(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			claims, status, desc := authenticate(ctx, token, validator, revocationChecker, logger)
			if claims == nil {
				code := "unauthorized"
				if status == http.StatusInternalServerError {
					code = "internal_error"
				}
				writeJSONError(w, status, code, desc)
				return
			}
			ctx = requestcontext.WithSession(ctx, claims.Wallet, claims.SessionID, claims.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func authenticate(ctx context.Context, token string, validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) (*JWTClaims, int, string) {
	requestID := request.GetRequestID(ctx)

	claims, err := validator.ValidateToken(token)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - invalid token",
			"error", err,
			"request_id", requestID,
		)
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}

	if revocationChecker == nil {
		return claims, http.StatusOK, ""
	}
	if claims.JTI == "" {
		logger.WarnContext(ctx, "unauthorized access - missing token jti",
			"request_id", requestID,
		)
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}
	revoked, err := revocationChecker.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		logger.ErrorContext(ctx, "failed to check token revocation",
			"error", err,
			"request_id", requestID,
		)
		return nil, http.StatusInternalServerError, "Failed to validate token"
	}
	if revoked {
		logger.WarnContext(ctx, "unauthorized access - token revoked",
			"jti", claims.JTI,
			"request_id", requestID,
		)
		return nil, http.StatusUnauthorized, "Token has been revoked"
	}
	return claims, http.StatusOK, ""
}
