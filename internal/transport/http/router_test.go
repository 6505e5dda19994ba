package httptransport

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authhandler "chariblock/internal/auth/handler"
	authservice "chariblock/internal/auth/service"
	"chariblock/internal/auth/store/revocation"
	charityhandler "chariblock/internal/charity/handler"
	charitymetrics "chariblock/internal/charity/metrics"
	charityservice "chariblock/internal/charity/service"
	"chariblock/internal/documents"
	donationhandler "chariblock/internal/donation/handler"
	donationmetrics "chariblock/internal/donation/metrics"
	donationservice "chariblock/internal/donation/service"
	jwttoken "chariblock/internal/jwt_token"
	"chariblock/internal/platform/metrics"
	profilehandler "chariblock/internal/profile/handler"
	profileservice "chariblock/internal/profile/service"
	"chariblock/internal/storage/memory"
	"chariblock/pkg/platform/audit/publishers/compliance"
	"chariblock/pkg/platform/audit/publishers/security"
	auditmemory "chariblock/pkg/platform/audit/store/memory"
	"chariblock/pkg/testutil"
)

const (
	creator    = "0x1111111111111111111111111111111111111111"
	donor      = "0x2222222222222222222222222222222222222222"
	adminToken = "review-token"
)

func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

type testServer struct {
	router http.Handler
	audits *auditmemory.InMemoryStore
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	audits := auditmemory.NewInMemoryStore()
	compliancePub := compliance.New(audits)
	securityPub := security.New(audits)
	t.Cleanup(func() { _ = securityPub.Close() })

	reg := prometheus.NewRegistry()
	platformMetrics := metrics.NewWithRegistry(reg)
	uploader, err := documents.NewLocal(t.TempDir(), "http://localhost/media/documents/")
	require.NoError(t, err)

	jwtService := jwttoken.NewJWTService("test-signing-key", "chariblock-test")
	trl := revocation.NewInMemoryTRL()

	profiles := profileservice.New(store,
		profileservice.WithLogger(logger),
		profileservice.WithAuditPublisher(compliancePub),
		profileservice.WithMetrics(platformMetrics),
	)
	charities := charityservice.New(store, uploader,
		charityservice.WithLogger(logger),
		charityservice.WithAuditPublisher(compliancePub),
		charityservice.WithMetrics(charitymetrics.NewWithRegistry(reg)),
	)
	donations := donationservice.New(store,
		donationservice.WithLogger(logger),
		donationservice.WithAuditPublisher(compliancePub),
		donationservice.WithMetrics(donationmetrics.NewWithRegistry(reg)),
	)
	auth := authservice.New(store, jwtService, trl,
		authservice.WithLogger(logger),
		authservice.WithAuditPublisher(securityPub),
		authservice.WithBcryptCost(bcrypt.MinCost),
	)

	router := NewRouter(opts, Deps{
		Profiles:    profilehandler.New(profiles, logger),
		Charities:   charityhandler.New(charities, logger, 1<<20),
		Donations:   donationhandler.New(donations, logger),
		Auth:        authhandler.New(auth, logger),
		Validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		Revocations: trl,
		Metrics:     platformMetrics,
		Gatherer:    reg,
		Logger:      logger,
	})
	return &testServer{router: router, audits: audits}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *testServer) createProfile(t *testing.T, wallet, kind string) {
	t.Helper()
	rr := s.do(testutil.NewJSONRequest(t, http.MethodPost, "/profiles", map[string]string{
		"walletAddress": wallet,
		"name":          "Grace Hopper",
		"email":         "grace@example.org",
		"profileType":   kind,
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
}

func (s *testServer) submitCharity(t *testing.T) string {
	t.Helper()
	req := testutil.NewMultipartRequest(t, http.MethodPost, "/charities",
		map[string]string{
			"name":           "Clean Water",
			"description":    "Wells for villages",
			"wallet_address": creator,
			"target_amount":  "100",
			"category":       "Environment",
			"creator_name":   "Grace Hopper",
			"creator_email":  "grace@example.org",
		},
		testutil.FilePart{Field: "govIdFile", Filename: "id.pdf", Content: []byte("%PDF id")},
		testutil.FilePart{Field: "approval_doc_file", Filename: "approval.pdf", Content: []byte("%PDF approval")},
	)
	rr := s.do(req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	body := testutil.UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, "pending", (*body)["status"])
	id, _ := (*body)["id"].(float64)
	return strconv.FormatFloat(id, 'f', -1, 64)
}

func donationBody(charityID, amount, hash string) map[string]any {
	return map[string]any{
		"charityId":    charityID,
		"donorAddress": donor,
		"amount":       amount,
		"txHash":       hash,
	}
}

func TestDonationFlow(t *testing.T) {
	srv := newTestServer(t, Options{RequestTimeout: 5 * time.Second, AdminToken: adminToken})
	srv.createProfile(t, creator, "charity_creator")

	var charityID string
	testutil.Given(t, "a submitted charity", func(t *testing.T) {
		charityID = srv.submitCharity(t)
		require.Equal(t, "1", charityID)
	})

	testutil.When(t, "the reviewer approves it", func(t *testing.T) {
		rr := srv.do(testutil.NewJSONRequest(t, http.MethodPut, "/charities/"+charityID+"/status",
			map[string]string{"status": "approved"}))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

		req := testutil.NewJSONRequest(t, http.MethodPut, "/charities/"+charityID+"/status",
			map[string]string{"status": "approved"})
		req.Header.Set("X-Admin-Token", adminToken)
		rr = srv.do(req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "approved", (*body)["status"])
		assert.NotNil(t, (*body)["approvedAt"])
	})

	testutil.Then(t, "donations accumulate and duplicates are rejected", func(t *testing.T) {
		rr := srv.do(testutil.NewJSONRequest(t, http.MethodPost, "/donations", donationBody(charityID, "40", txHash(1))))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, "40", (*testutil.UnmarshalResponse[map[string]any](t, rr))["raisedAmount"])

		rr = srv.do(testutil.NewJSONRequest(t, http.MethodPost, "/donations", donationBody(charityID, "25", txHash(2))))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		assert.Equal(t, "65", (*testutil.UnmarshalResponse[map[string]any](t, rr))["raisedAmount"])

		rr = srv.do(testutil.NewJSONRequest(t, http.MethodPost, "/donations", donationBody(charityID, "25", txHash(2))))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "duplicate_transaction")

		rr = srv.do(httptest.NewRequest(http.MethodGet, "/charities/"+charityID+"/stats", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		stats := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.InDelta(t, 2, (*stats)["donationCount"], 0)
		assert.Equal(t, "65", (*stats)["raisedAmount"])

		rr = srv.do(httptest.NewRequest(http.MethodGet, "/donations?charity_id="+charityID, nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		list := testutil.UnmarshalResponse[[]map[string]any](t, rr)
		assert.Len(t, *list, 2)
	})

	testutil.Then(t, "the ledger left a compliance trail", func(t *testing.T) {
		events, err := srv.audits.ListRecent(t.Context(), 100)
		require.NoError(t, err)
		counts := map[string]int{}
		for _, e := range events {
			counts[e.Action]++
		}
		assert.Equal(t, 1, counts["profile_created"])
		assert.Equal(t, 1, counts["charity_created"])
		assert.Equal(t, 1, counts["charity_approved"])
		assert.Equal(t, 2, counts["donation_recorded"])
	})
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{RequireSessions: true})
	srv.createProfile(t, donor, "donor")

	rr := srv.do(testutil.NewJSONRequest(t, http.MethodPost, "/auth/signup", map[string]string{
		"username": "ada", "password": "correct horse", "wallet_address": donor,
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr = srv.do(testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "ada", "password": "correct horse",
	}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	login := testutil.UnmarshalResponse[authhandler.LoginResponse](t, rr)
	require.NotEmpty(t, login.AccessToken)

	testutil.When(t, "writing without a token", func(t *testing.T) {
		rr := srv.do(testutil.NewJSONRequest(t, http.MethodPost, "/donations", donationBody("1", "1", txHash(1))))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	testutil.When(t, "writing with a token for an unknown charity", func(t *testing.T) {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/donations", donationBody("9", "1", txHash(1))), login.AccessToken)
		rr := srv.do(req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "charity_not_found")
	})

	testutil.Then(t, "logout revokes the token", func(t *testing.T) {
		req := testutil.WithBearer(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), login.AccessToken)
		testutil.AssertStatus(t, srv.do(req), http.StatusNoContent)

		req = testutil.WithBearer(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), login.AccessToken)
		testutil.AssertStatus(t, srv.do(req), http.StatusUnauthorized)
	})
}

func TestPlatformRoutes(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodPost, "/donations", strings.NewReader("charityId=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	testutil.AssertStatus(t, srv.do(req), http.StatusUnsupportedMediaType)

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "chariblock_http_request_duration_seconds")
}
