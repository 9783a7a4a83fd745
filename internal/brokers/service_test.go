package brokers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/activity"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
	"github.com/angelmondragon/tradelines-backend/pkg/redis/redistest"
)

type harness struct {
	db    *gorm.DB
	cache *redistest.Cache
	svc   Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, &models.Broker{}, &models.ActivityLog{}, &models.OutboxEvent{}, &models.BrokerAnalytics{})
	activitySvc, err := activity.NewService(activity.NewRepository(conn))
	require.NoError(t, err)
	cache := redistest.NewCache()

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       db.NewFromGorm(conn),
		Activity: activitySvc,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Cache:    cache,
		Pricing:  config.PricingConfig{DefaultRevenueShare: 10, MinRevenueShare: 10, MaxRevenueShare: 25},
		Password: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	})
	require.NoError(t, err)
	return &harness{db: conn, cache: cache, svc: svc}
}

func (h *harness) onboard(t *testing.T, email string) *OnboardResult {
	t.Helper()
	res, err := h.svc.Onboard(context.Background(), OnboardInput{
		Name:        "Acme Credit",
		Email:       email,
		MarkupType:  enums.MarkupTypePercentage,
		MarkupValue: decimal.NewFromInt(20),
		ActorID:     "admin",
	})
	require.NoError(t, err)
	return res
}

func TestOnboardCreatesPendingBrokerWithSecretOnce(t *testing.T) {
	h := newHarness(t)
	res := h.onboard(t, "Broker@Example.com")

	assert.Equal(t, enums.BrokerStatusPending, res.Broker.Status)
	assert.Equal(t, "broker@example.com", res.Broker.Email)
	assert.True(t, res.Broker.RevenueSharePercent.Equal(decimal.NewFromInt(10)))
	assert.NotEmpty(t, res.APISecret)
	assert.NotContains(t, res.Broker.APISecretHash, res.APISecret)

	var events []models.OutboxEvent
	require.NoError(t, h.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventBrokerOnboarded, events[0].EventType)

	var logs []models.ActivityLog
	require.NoError(t, h.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, enums.ActivityBrokerOnboarded, logs[0].Action)
}

func TestOnboardRejectsDuplicateEmailAndBadShare(t *testing.T) {
	h := newHarness(t)
	h.onboard(t, "dup@example.com")

	_, err := h.svc.Onboard(context.Background(), OnboardInput{Name: "Again", Email: "DUP@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	share := decimal.NewFromInt(30)
	_, err = h.svc.Onboard(context.Background(), OnboardInput{Name: "Greedy", Email: "g@example.com", RevenueSharePercent: &share})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, h.db.Model(&models.Broker{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestApproveOnlyFromPending(t *testing.T) {
	h := newHarness(t)
	res := h.onboard(t, "a@example.com")

	broker, err := h.svc.Approve(context.Background(), res.Broker.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, enums.BrokerStatusActive, broker.Status)
	assert.NotNil(t, broker.ApprovedAt)

	_, err = h.svc.Approve(context.Background(), res.Broker.ID, "admin")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.Approve(context.Background(), uuid.New(), "admin")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateChecksBoundsAndInvalidatesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.onboard(t, "u@example.com")

	_, err := h.svc.Get(ctx, res.Broker.ID)
	require.NoError(t, err)
	key := redis.BrokerKey(res.Broker.ID.String())
	require.True(t, h.cache.Has(key))
	assert.Equal(t, time.Hour, h.cache.TTL(key))
	assert.NotContains(t, string(h.cache.Raw(key)), res.Broker.APISecretHash)

	tooLow := decimal.NewFromInt(5)
	_, err = h.svc.Update(ctx, res.Broker.ID, UpdateInput{RevenueSharePercent: &tooLow}, "admin")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	share := decimal.NewFromInt(15)
	fixed := enums.MarkupTypeFixed
	value := decimal.NewFromInt(2500)
	updated, err := h.svc.Update(ctx, res.Broker.ID, UpdateInput{RevenueSharePercent: &share, MarkupType: &fixed, MarkupValue: &value}, "admin")
	require.NoError(t, err)
	assert.True(t, updated.RevenueSharePercent.Equal(share))
	assert.Equal(t, enums.MarkupTypeFixed, updated.MarkupType)
	assert.False(t, h.cache.Has(key))

	negative := decimal.NewFromInt(-1)
	_, err = h.svc.Update(ctx, res.Broker.ID, UpdateInput{MarkupValue: &negative}, "admin")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetFallsThroughWhenCacheDown(t *testing.T) {
	h := newHarness(t)
	res := h.onboard(t, "c@example.com")
	h.cache.Down = true

	broker, err := h.svc.Get(context.Background(), res.Broker.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Broker.ID, broker.ID)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.onboard(t, "auth@example.com")

	broker, err := h.svc.Authenticate(ctx, res.Broker.APIKey, res.APISecret)
	require.NoError(t, err)
	assert.Equal(t, res.Broker.ID, broker.ID)

	_, err = h.svc.Authenticate(ctx, res.Broker.APIKey, "wrong")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = h.svc.Authenticate(ctx, "tlk_missing", res.APISecret)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	suspended := enums.BrokerStatusSuspended
	_, err = h.svc.Update(ctx, res.Broker.ID, UpdateInput{Status: &suspended}, "admin")
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, res.Broker.APIKey, res.APISecret)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestRecordSaleAccumulatesPerDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	brokerID := uuid.New()
	at := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)

	for _, revenue := range []int64{60000, 40000} {
		err := h.db.Transaction(func(tx *gorm.DB) error {
			return h.svc.RecordSale(ctx, tx, Sale{BrokerID: brokerID, At: at, Revenue: revenue, RevenueShare: 5000, Markup: 10000})
		})
		require.NoError(t, err)
	}

	var rows []models.BrokerAnalytics
	require.NoError(t, h.db.Where("broker_id = ?", brokerID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].OrderCount)
	assert.Equal(t, int64(100000), rows[0].Revenue)
	assert.Equal(t, int64(10000), rows[0].RevenueShareEarned)
	assert.Equal(t, int64(20000), rows[0].MarkupEarned)
}
