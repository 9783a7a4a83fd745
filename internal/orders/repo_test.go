package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

func seedOrder(t *testing.T, repo Repository, number string) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   number,
		CustomerEmail: "jane@example.com",
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: enums.PaymentMethodStripe,
		SubtotalBase:  50000,
		TotalCharged:  50000,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepositoryTransitionHonoursGuard(t *testing.T) {
	conn := dbtest.Open(t, &models.Order{}, &models.OrderItem{}, &models.CommissionRecord{})
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, repo, "TLM26100001")

	ok, err := repo.Transition(ctx, order.ID, StatusGuard{
		PaymentStatuses: []enums.PaymentStatus{enums.PaymentStatusSucceeded},
	}, map[string]any{"status": enums.OrderStatusCompleted})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, order.ID, StatusGuard{
		Statuses:        []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusFailed},
		PaymentStatuses: []enums.PaymentStatus{enums.PaymentStatusPending},
	}, map[string]any{"payment_status": enums.PaymentStatusSucceeded})
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, loaded.PaymentStatus)
}

func TestRepositoryOrderNumberIsUnique(t *testing.T) {
	conn := dbtest.Open(t, &models.Order{}, &models.OrderItem{}, &models.CommissionRecord{})
	repo := NewRepository(conn)
	seedOrder(t, repo, "TLM26100002")

	err := repo.Create(context.Background(), &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "TLM26100002",
		CustomerEmail: "other@example.com",
	})
	require.Error(t, err)
	assert.True(t, isOrderNumberCollision(err))
}

func TestRepositoryItemCountsAndFindForUpdate(t *testing.T) {
	conn := dbtest.Open(t, &models.Order{}, &models.OrderItem{}, &models.CommissionRecord{})
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, repo, "TLM26100003")
	empty := seedOrder(t, repo, "TLM26100004")

	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, CardID: "c1", BankName: "Chase", Quantity: 1, UnitBasePrice: 100, UnitCustomerPrice: 100, LineBasePrice: 100, LineCustomerPrice: 100},
		{ID: uuid.New(), OrderID: order.ID, CardID: "c2", BankName: "Amex", Quantity: 2, UnitBasePrice: 50, UnitCustomerPrice: 50, LineBasePrice: 100, LineCustomerPrice: 100},
	}))

	counts, err := repo.ItemCounts(ctx, []uuid.UUID{order.ID, empty.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[order.ID])
	assert.Equal(t, 0, counts[empty.ID])

	locked, err := repo.FindForUpdate(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, locked.Items, 2)
}

func TestEndOfDayIsExclusiveUpperBound(t *testing.T) {
	got := endOfDay(time.Date(2026, 3, 9, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestNewOrderNumberFormat(t *testing.T) {
	number, err := NewOrderNumber(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, `^TLM2610\d{4}$`, number)
}
