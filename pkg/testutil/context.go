package testutil

import (
	"net/http"

	id "chariblock/pkg/domain"
	"chariblock/pkg/requestcontext"
)

// WithSession binds a wallet session to the request context, as the session
// middleware does for a valid bearer token.
func WithSession(req *http.Request, wallet id.WalletAddress, sessionID, tokenID string) *http.Request {
	return req.WithContext(requestcontext.WithSession(req.Context(), wallet, sessionID, tokenID))
}
