package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/brokers"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

type stubBrokerService struct {
	broker     *models.Broker
	secret     string
	err        error
	gotOnboard brokers.OnboardInput
	gotUpdate  brokers.UpdateInput
	gotActor   string
}

func (s *stubBrokerService) Onboard(ctx context.Context, input brokers.OnboardInput) (*brokers.OnboardResult, error) {
	s.gotOnboard = input
	if s.err != nil {
		return nil, s.err
	}
	return &brokers.OnboardResult{Broker: s.broker, APISecret: s.secret}, nil
}

func (s *stubBrokerService) Approve(ctx context.Context, brokerID uuid.UUID, actorID string) (*models.Broker, error) {
	s.gotActor = actorID
	if s.err != nil {
		return nil, s.err
	}
	s.broker.Status = enums.BrokerStatusActive
	return s.broker, nil
}

func (s *stubBrokerService) Update(ctx context.Context, brokerID uuid.UUID, input brokers.UpdateInput, actorID string) (*models.Broker, error) {
	s.gotUpdate = input
	s.gotActor = actorID
	return s.broker, s.err
}

func (s *stubBrokerService) Get(ctx context.Context, brokerID uuid.UUID) (*models.Broker, error) {
	return s.broker, s.err
}

func (s *stubBrokerService) Authenticate(ctx context.Context, apiKey, secret string) (*models.Broker, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubBrokerService) RecordSale(ctx context.Context, tx *gorm.DB, sale brokers.Sale) error {
	return nil
}

func sampleBroker() *models.Broker {
	return &models.Broker{
		ID:                  uuid.New(),
		Name:                "Dana Broker",
		Email:               "dana@example.com",
		Status:              enums.BrokerStatusPending,
		RevenueSharePercent: decimal.NewFromInt(10),
		MarkupType:          enums.MarkupTypePercentage,
		MarkupValue:         decimal.NewFromInt(20),
		APIKey:              "tl_live_abc",
		APISecretHash:       "$argon2id$v=19$secret-hash",
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
}

func TestAdminOnboardBrokerReturnsSecretOnce(t *testing.T) {
	svc := &stubBrokerService{broker: sampleBroker(), secret: "plain-secret"}
	body := `{"name":" Dana Broker ","email":"dana@example.com","markup_type":"fixed","markup_value":"25.00","revenue_share_percent":"12.5"}`

	rec := httptest.NewRecorder()
	AdminOnboardBroker(svc, nil).ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotContains(t, rec.Body.String(), "argon2")
	assert.Equal(t, "Dana Broker", svc.gotOnboard.Name)
	assert.Equal(t, enums.MarkupTypeFixed, svc.gotOnboard.MarkupType)
	assert.True(t, decimal.RequireFromString("12.5").Equal(*svc.gotOnboard.RevenueSharePercent))
	assert.Equal(t, "admin", svc.gotOnboard.ActorID)

	var out struct {
		APISecret string `json:"api_secret"`
		Broker    struct {
			APIKey string `json:"api_key"`
		} `json:"broker"`
	}
	decode(t, rec, &out)
	assert.Equal(t, "plain-secret", out.APISecret)
	assert.Equal(t, "tl_live_abc", out.Broker.APIKey)

	rec = httptest.NewRecorder()
	AdminGetBroker(svc, nil).ServeHTTP(rec, withURLParam(asAdmin(httptest.NewRequest(http.MethodGet, "/", nil)), "brokerId", svc.broker.ID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "api_secret")
}

func TestAdminOnboardBrokerDefaultsToPercentage(t *testing.T) {
	svc := &stubBrokerService{broker: sampleBroker(), secret: "s"}
	rec := httptest.NewRecorder()
	AdminOnboardBroker(svc, nil).ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"A","email":"a@example.com","markup_value":"10"}`))))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, enums.MarkupTypePercentage, svc.gotOnboard.MarkupType)
	assert.Nil(t, svc.gotOnboard.RevenueSharePercent)
}

func TestAdminOnboardBrokerConflict(t *testing.T) {
	svc := &stubBrokerService{err: pkgerrors.New(pkgerrors.CodeConflict, "broker email already registered")}
	rec := httptest.NewRecorder()
	AdminOnboardBroker(svc, nil).ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"A","email":"a@example.com","markup_value":"10"}`))))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminUpdateBrokerParsesEnums(t *testing.T) {
	broker := sampleBroker()
	svc := &stubBrokerService{broker: broker}

	req := withURLParam(asAdmin(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"suspended","markup_type":"FIXED","markup_value":"5"}`))), "brokerId", broker.ID.String())
	rec := httptest.NewRecorder()
	AdminUpdateBroker(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.BrokerStatusSuspended, *svc.gotUpdate.Status)
	assert.Equal(t, enums.MarkupTypeFixed, *svc.gotUpdate.MarkupType)
	assert.True(t, decimal.NewFromInt(5).Equal(*svc.gotUpdate.MarkupValue))
	assert.Nil(t, svc.gotUpdate.Name)

	req = withURLParam(asAdmin(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"BANNED"}`))), "brokerId", broker.ID.String())
	rec = httptest.NewRecorder()
	AdminUpdateBroker(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminApproveBroker(t *testing.T) {
	broker := sampleBroker()
	svc := &stubBrokerService{broker: broker}

	rec := httptest.NewRecorder()
	AdminApproveBroker(svc, nil).ServeHTTP(rec, withURLParam(asAdmin(httptest.NewRequest(http.MethodPost, "/", nil)), "brokerId", broker.ID.String()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", svc.gotActor)
	var out struct {
		Status enums.BrokerStatus `json:"status"`
	}
	decode(t, rec, &out)
	assert.Equal(t, enums.BrokerStatusActive, out.Status)

	rec = httptest.NewRecorder()
	AdminApproveBroker(svc, nil).ServeHTTP(rec, withURLParam(asAdmin(httptest.NewRequest(http.MethodPost, "/", nil)), "brokerId", "not-a-uuid"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
