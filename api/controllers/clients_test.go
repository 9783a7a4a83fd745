package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/internal/clients"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

type stubClientService struct {
	client     *models.Client
	created    bool
	err        error
	gotOnboard clients.OnboardInput
	gotScope   *uuid.UUID
	gotBanks   []string
}

func (s *stubClientService) GetOrCreate(ctx context.Context, input clients.OnboardInput) (*clients.OnboardResult, error) {
	s.gotOnboard = input
	if s.err != nil {
		return nil, s.err
	}
	return &clients.OnboardResult{Client: s.client, Created: s.created}, nil
}

func (s *stubClientService) Get(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID) (*models.Client, error) {
	s.gotScope = scope
	return s.client, s.err
}

func (s *stubClientService) UpdateExcludedBanks(ctx context.Context, clientID uuid.UUID, scope *uuid.UUID, banks []string) (*models.Client, error) {
	s.gotScope = scope
	s.gotBanks = banks
	return s.client, s.err
}

func (s *stubClientService) ExcludedBanks(ctx context.Context, clientID uuid.UUID) ([]string, error) {
	return nil, s.err
}

func TestOnboardClientPinsBrokerAndReportsCreation(t *testing.T) {
	brokerID := uuid.New()
	svc := &stubClientService{client: &models.Client{ID: uuid.New(), BrokerID: &brokerID, Email: "jane@example.com"}, created: true}
	body := `{"email":"jane@example.com","name":"Jane","excluded_banks":["Chase"]}`

	rec := httptest.NewRecorder()
	OnboardClient(svc, nil).ServeHTTP(rec, asBroker(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), brokerID))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, brokerID, *svc.gotOnboard.BrokerID)
	assert.Equal(t, []string{"Chase"}, svc.gotOnboard.ExcludedBanks)

	var out struct {
		Email         string   `json:"email"`
		ExcludedBanks []string `json:"excluded_banks"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "jane@example.com", out.Email)
	assert.Equal(t, []string{}, out.ExcludedBanks)

	svc.created = false
	rec = httptest.NewRecorder()
	OnboardClient(svc, nil).ServeHTTP(rec, asBroker(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), brokerID))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOnboardClientRejectsForeignBroker(t *testing.T) {
	svc := &stubClientService{client: &models.Client{ID: uuid.New()}}
	body := `{"email":"jane@example.com","broker_id":"` + uuid.NewString() + `"}`

	rec := httptest.NewRecorder()
	OnboardClient(svc, nil).ServeHTTP(rec, asBroker(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), uuid.New()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.gotOnboard.Email)
}

func TestOnboardClientValidatesEmail(t *testing.T) {
	svc := &stubClientService{}
	rec := httptest.NewRecorder()
	OnboardClient(svc, nil).ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClientScopesToCallingBroker(t *testing.T) {
	brokerID := uuid.New()
	svc := &stubClientService{err: pkgerrors.New(pkgerrors.CodeNotFound, "client not found")}

	rec := httptest.NewRecorder()
	req := withURLParam(asBroker(httptest.NewRequest(http.MethodGet, "/", nil), brokerID), "clientId", uuid.NewString())
	GetClient(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, svc.gotScope)
	assert.Equal(t, brokerID, *svc.gotScope)

	svc.err = nil
	svc.client = &models.Client{ID: uuid.New(), Email: "jane@example.com"}
	rec = httptest.NewRecorder()
	req = withURLParam(asAdmin(httptest.NewRequest(http.MethodGet, "/", nil)), "clientId", svc.client.ID.String())
	GetClient(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.gotScope)
}

func TestUpdateClientExcludedBanks(t *testing.T) {
	brokerID := uuid.New()
	svc := &stubClientService{client: &models.Client{ID: uuid.New(), Email: "jane@example.com"}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"excluded_banks":["Amex","Discover"]}`))
	req = withURLParam(asBroker(req, brokerID), "clientId", svc.client.ID.String())
	UpdateClientExcludedBanks(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"Amex", "Discover"}, svc.gotBanks)
	assert.Equal(t, brokerID, *svc.gotScope)
}
