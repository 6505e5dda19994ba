package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"chariblock/internal/profile/handler/mocks"
	"chariblock/internal/profile/models"
	id "chariblock/pkg/domain"
	dErrors "chariblock/pkg/domain-errors"
	"chariblock/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/profile-mocks.go -package=mocks Service
type ProfileHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestProfileHandlerSuite(t *testing.T) {
	suite.Run(t, new(ProfileHandlerSuite))
}

const wallet = "0x1111111111111111111111111111111111111111"

func (s *ProfileHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterWrites(s.router)
}

func (s *ProfileHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func sampleProfile() *models.Profile {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Profile{
		WalletAddress: id.WalletAddress(wallet),
		Name:          "Ada",
		Email:         "ada@example.org",
		Kind:          models.KindDonor,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

func (s *ProfileHandlerSuite) TestCreate() {
	s.Run("accepts snake_case keys and answers camelCase", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.CreateProfileRequest) (*models.Profile, error) {
				s.Equal(wallet, req.WalletAddress)
				s.Equal("donor", req.ProfileType)
				return sampleProfile(), nil
			})

		body := `{"wallet_address":"` + wallet + `","name":"Ada","email":"ada@example.org","profile_type":"donor"}`
		rec := s.serve(httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body)))

		s.Equal(http.StatusCreated, rec.Code)
		var resp map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(wallet, resp["walletAddress"])
		s.Equal("donor", resp["profileType"])
		s.Equal(false, resp["isVerified"])
	})

	s.Run("validation errors never reach the service", func() {
		rec := s.serve(httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(`{"walletAddress":"`+wallet+`"}`)))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "validation_error")
	})

	s.Run("duplicate wallet", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateKey, "profile with this wallet address already exists"))

		body := `{"walletAddress":"` + wallet + `","name":"Ada","email":"ada@example.org","profileType":"donor"}`
		rec := s.serve(httptest.NewRequest(http.MethodPost, "/profiles", strings.NewReader(body)))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "duplicate_key")
	})
}

func (s *ProfileHandlerSuite) TestGet() {
	s.service.EXPECT().Get(gomock.Any(), wallet).Return(sampleProfile(), nil)
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/profiles/"+wallet, nil))
	s.Equal(http.StatusOK, rec.Code)

	s.service.EXPECT().Get(gomock.Any(), wallet).Return(nil, dErrors.New(dErrors.CodeNotFound, "profile not found"))
	rec = s.serve(httptest.NewRequest(http.MethodGet, "/profiles/"+wallet, nil))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ProfileHandlerSuite) TestUpdateRejectsOtherWallets() {
	req := httptest.NewRequest(http.MethodPut, "/profiles/"+wallet, strings.NewReader(`{"name":"Eve"}`))
	other := id.WalletAddress("0x2222222222222222222222222222222222222222")
	req = req.WithContext(requestcontext.WithSession(req.Context(), other, "sess", "jti"))

	rec := s.serve(req)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *ProfileHandlerSuite) TestUpdate() {
	updated := sampleProfile()
	updated.Name = "Ada L."
	s.service.EXPECT().Update(gomock.Any(), wallet, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req *models.UpdateProfileRequest) (*models.Profile, error) {
			s.Require().NotNil(req.Name)
			s.Nil(req.Email)
			return updated, nil
		})

	req := httptest.NewRequest(http.MethodPut, "/profiles/"+wallet, strings.NewReader(`{"name":"Ada L."}`))
	req = req.WithContext(requestcontext.WithSession(req.Context(), id.WalletAddress(wallet), "sess", "jti"))
	rec := s.serve(req)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"name":"Ada L."`)
}
