package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"chariblock/internal/charity/handler/mocks"
	"chariblock/internal/charity/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/requestcontext"
)

const creator = "0x1111111111111111111111111111111111111111"

//go:generate mockgen -source=handler.go -destination=mocks/charity-mocks.go -package=mocks Service
type CharityHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestCharityHandlerSuite(t *testing.T) {
	suite.Run(t, new(CharityHandlerSuite))
}

func (s *CharityHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), 1<<20)
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterCreate(s.router)
	h.RegisterReview(s.router)
}

func (s *CharityHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func sampleCharity() *models.Charity {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Charity{
		ID:            7,
		Name:          "Clean Water",
		Description:   "Wells for villages",
		WalletAddress: id.WalletAddress(creator),
		TargetAmount:  decimal.RequireFromString("100"),
		RaisedAmount:  decimal.RequireFromString("40.5"),
		Category:      models.CategoryEnvironment,
		Status:        models.StatusPending,
		CreatorName:   "Grace",
		CreatorEmail:  "grace@example.org",
		CreatorWallet: id.WalletAddress(creator),
		GovIDDocument: models.Document{Hash: "QmGov", URL: "https://gateway.test/ipfs/QmGov"},
		ApprovalDoc:   models.Document{Hash: "QmApp", URL: "https://gateway.test/ipfs/QmApp"},
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

func multipartRequest(s *CharityHandlerSuite, fields map[string]string, files map[string]string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	for field, filename := range files {
		fw, err := mw.CreateFormFile(field, filename)
		s.Require().NoError(err)
		_, err = fw.Write([]byte("content of " + filename))
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/charities", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *CharityHandlerSuite) TestCreate() {
	s.Run("reads snake_case form fields and both files", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.CreateCharityRequest) (*models.Charity, error) {
				s.Equal("Clean Water", req.Name)
				s.Equal(creator, req.WalletAddress)
				s.Equal("100", req.TargetAmount)
				s.Equal("Grace", req.CreatorName)
				s.Require().NotNil(req.GovIDFile)
				s.Equal("id.pdf", req.GovIDFile.Filename)
				s.Equal([]byte("content of id.pdf"), req.GovIDFile.Bytes)
				s.Require().NotNil(req.ApprovalDocFile)
				s.Equal("approval.pdf", req.ApprovalDocFile.Filename)
				return sampleCharity(), nil
			})

		req := multipartRequest(s, map[string]string{
			"name":           "Clean Water",
			"description":    "Wells for villages",
			"wallet_address": creator,
			"target_amount":  "100",
			"category":       "Environment",
			"creator_name":   "Grace",
			"creator_email":  "grace@example.org",
		}, map[string]string{
			"gov_id_file":     "id.pdf",
			"approvalDocFile": "approval.pdf",
		})
		rec := s.serve(req)

		s.Equal(http.StatusCreated, rec.Code)
		var resp map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("100", resp["targetAmount"])
		s.Equal("40.5", resp["raisedAmount"])
		s.Equal("pending", resp["status"])
		s.Nil(resp["approvedAt"])
		creatorResp := resp["creator"].(map[string]any)
		s.Equal(creator, creatorResp["walletAddress"])
		docs := resp["documents"].(map[string]any)
		s.Equal("https://gateway.test/ipfs/QmGov", docs["govId"])
		s.Equal("QmApp", docs["approvalDocHash"])
	})

	s.Run("session wallet becomes the creator when none is given", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.CreateCharityRequest) (*models.Charity, error) {
				s.Equal(creator, req.CreatorWallet)
				s.Nil(req.GovIDFile)
				return nil, dErrors.New(dErrors.CodeValidation, "govIdFile is required")
			})

		req := multipartRequest(s, map[string]string{"name": "Clean Water"}, nil)
		req = req.WithContext(requestcontext.WithSession(req.Context(), id.WalletAddress(creator), "sess", "jti"))
		rec := s.serve(req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "govIdFile is required")
	})

	s.Run("upload failure maps to bad gateway", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUploadFailed, "failed to upload documents"))
		rec := s.serve(multipartRequest(s, map[string]string{"name": "x"}, nil))
		s.Equal(http.StatusBadGateway, rec.Code)
		s.Contains(rec.Body.String(), "upload_failed")
	})

	s.Run("non-multipart body is rejected", func() {
		req := httptest.NewRequest(http.MethodPost, "/charities", strings.NewReader(`{"name":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := s.serve(req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "bad_request")
	})
}

func (s *CharityHandlerSuite) TestSetStatus() {
	s.Run("approves", func() {
		approved := sampleCharity()
		approved.Status = models.StatusApproved
		at := approved.CreatedAt.Add(time.Hour)
		approved.ApprovedAt = &at
		s.service.EXPECT().SetStatus(gomock.Any(), id.CharityID(7), "approved").Return(approved, nil)

		rec := s.serve(httptest.NewRequest(http.MethodPut, "/charities/7/status", strings.NewReader(`{"status":"approved"}`)))
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"status":"approved"`)
		s.Contains(rec.Body.String(), `"approvedAt":"2024-03-01T13:00:00Z"`)
	})

	s.Run("invalid status never reaches the service", func() {
		rec := s.serve(httptest.NewRequest(http.MethodPut, "/charities/7/status", strings.NewReader(`{"status":"pending"}`)))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "invalid_status")
	})

	s.Run("already finalized", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), id.CharityID(7), "rejected").
			Return(nil, dErrors.New(dErrors.CodeAlreadyFinalized, "charity is already approved"))
		rec := s.serve(httptest.NewRequest(http.MethodPut, "/charities/7/status", strings.NewReader(`{"status":"rejected"}`)))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "already_finalized")
	})

	s.Run("malformed id", func() {
		rec := s.serve(httptest.NewRequest(http.MethodPut, "/charities/abc/status", strings.NewReader(`{"status":"approved"}`)))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "invalid_input")
	})
}

func (s *CharityHandlerSuite) TestGetAndList() {
	s.service.EXPECT().Get(gomock.Any(), id.CharityID(7)).Return(sampleCharity(), nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/charities/7", nil))
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().Get(gomock.Any(), id.CharityID(8)).Return(nil, dErrors.New(dErrors.CodeNotFound, "charity not found"))
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/charities/8", nil))
	s.Equal(http.StatusNotFound, rec.Code)

	s.service.EXPECT().List(gomock.Any(), models.ListQuery{Status: "approved", CreatorWallet: creator}).
		Return([]*models.Charity{sampleCharity()}, nil)
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/charities?status=approved&creator_wallet="+creator, nil))
	s.Equal(http.StatusOK, rec.Code)
	var list []map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.Len(list, 1)
}

func (s *CharityHandlerSuite) TestEmptyListIsAnArray() {
	s.service.EXPECT().List(gomock.Any(), models.ListQuery{}).Return(nil, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/charities", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())
}

func (s *CharityHandlerSuite) TestStats() {
	s.service.EXPECT().Stats(gomock.Any(), id.CharityID(7)).Return(&models.Stats{
		CharityID:     7,
		DonationCount: 2,
		RaisedAmount:  decimal.RequireFromString("65"),
		TargetAmount:  decimal.RequireFromString("100"),
		PercentFunded: decimal.RequireFromString("65"),
	}, nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/charities/7/stats", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"charityId":7,"donationCount":2,"raisedAmount":"65","targetAmount":"100","percentFunded":"65"}`, rec.Body.String())
}
