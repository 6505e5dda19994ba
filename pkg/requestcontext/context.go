// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing
// net/http.
//
// Usage in services (read values):
//
//	wallet := requestcontext.Wallet(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithSession(ctx, wallet, "session-id", "jti")
package requestcontext

import (
	"context"
	"time"

	id "chariblock/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	walletKey      struct{}
	sessionIDKey   struct{}
	tokenIDKey     struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyWallet      = walletKey{}
	ContextKeySessionID   = sessionIDKey{}
	ContextKeyTokenID     = tokenIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Session context
// -----------------------------------------------------------------------------

// Wallet retrieves the wallet address bound to the caller's session.
// Returns the empty address for anonymous requests.
func Wallet(ctx context.Context) id.WalletAddress {
	if w, ok := ctx.Value(ContextKeyWallet).(id.WalletAddress); ok {
		return w
	}
	return ""
}

// SessionID retrieves the session ID from the context.
func SessionID(ctx context.Context) string {
	if sid, ok := ctx.Value(ContextKeySessionID).(string); ok {
		return sid
	}
	return ""
}

// TokenID retrieves the access token's jti from the context.
func TokenID(ctx context.Context) string {
	if jti, ok := ctx.Value(ContextKeyTokenID).(string); ok {
		return jti
	}
	return ""
}

// WithSession injects the authenticated wallet, session ID and token ID.
func WithSession(ctx context.Context, wallet id.WalletAddress, sessionID, tokenID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyWallet, wallet)
	ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)
	ctx = context.WithValue(ctx, ContextKeyTokenID, tokenID)
	return ctx
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time; all timestamps written while handling the
// request use it.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
