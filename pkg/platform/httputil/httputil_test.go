package httputil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "chariblock/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok, "expected error_description to be omitted for internal errors")
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, io.ErrUnexpectedEOF)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "unexpected EOF")
	})

	t.Run("duplicate transaction includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeDuplicateTransaction, "donation with this transaction hash already exists"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "duplicate_transaction", body["error"])
		assert.Equal(t, "donation with this transaction hash already exists", body["error_description"])
	})

	t.Run("upload failure is a bad gateway", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeUploadFailed, "document upload failed"))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestFieldNamesRoundTrip(t *testing.T) {
	seen := map[string]bool{}
	for camel, snake := range FieldNames {
		assert.Equal(t, snake, SnakeName(camel))
		assert.Equal(t, camel, CamelName(snake))
		assert.False(t, seen[snake], "snake alias %q mapped twice", snake)
		seen[snake] = true
	}
	assert.Equal(t, "name", CamelName("name"))
	assert.Equal(t, "name", SnakeName("name"))
}

func TestCamelizeKeys(t *testing.T) {
	t.Run("renames aliases", func(t *testing.T) {
		out, err := CamelizeKeys([]byte(`{"charity_id": 3, "tx_hash": "0xab", "amount": "1.5"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"charityId": 3, "txHash": "0xab", "amount": "1.5"}`, string(out))
	})

	t.Run("camelCase wins on conflict", func(t *testing.T) {
		out, err := CamelizeKeys([]byte(`{"txHash": "camel", "tx_hash": "snake"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"txHash": "camel"}`, string(out))
	})

	t.Run("non-object bodies pass through", func(t *testing.T) {
		out, err := CamelizeKeys([]byte(`[1,2]`))
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(out))
	})
}

func TestQueryValue(t *testing.T) {
	q := url.Values{"charity_id": {"7"}}
	assert.Equal(t, "7", QueryValue(q, "charityId"))
	q.Set("charityId", "8")
	assert.Equal(t, "8", QueryValue(q, "charityId"))
}

type sampleRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (r *sampleRequest) Validate() error {
	r.WalletAddress = strings.TrimSpace(r.WalletAddress)
	if r.WalletAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "walletAddress is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("accepts snake_case keys", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"wallet_address":" 0xabc "}`))
		req, ok := DecodeAndPrepare[sampleRequest](w, r, logger, context.Background(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "0xabc", req.WalletAddress)
	})

	t.Run("writes validation error", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		_, ok := DecodeAndPrepare[sampleRequest](w, r, logger, context.Background(), "req-2")
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"wallet`))
		_, ok := DecodeAndPrepare[sampleRequest](w, r, logger, context.Background(), "req-3")
		require.False(t, ok)
		assert.Contains(t, w.Body.String(), "bad_request")
	})
}
