package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

func TestRepositoryFindByIDHydratesAssociations(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD-20260101-AAAA0001",
		Type:         enums.OrderTypeSale,
		Status:       enums.OrderStatusPendingPayment,
		TotalAmount:  decimal.NewFromInt(30),
		CurrencyCode: "USD",
		BusinessID:   uuid.New(),
		CustomerID:   uuid.New(),
		Lines: []models.OrderLine{
			{ID: uuid.New(), VariantID: uuid.New(), Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
		},
	}
	require.NoError(t, repo.Create(ctx, order))

	base := time.Now().UTC().Add(-time.Hour)
	for i, status := range []enums.OrderStatus{enums.OrderStatusPendingPayment, enums.OrderStatusPaid} {
		require.NoError(t, repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Status:      status,
			TriggeredBy: "system",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	require.Len(t, loaded.StatusHistory, 2)
	assert.Equal(t, enums.OrderStatusPendingPayment, loaded.StatusHistory[0].Status)
	assert.Equal(t, enums.OrderStatusPaid, loaded.StatusHistory[1].Status)
	assert.True(t, loaded.TotalAmount.Equal(decimal.NewFromInt(30)))

	assert.Equal(t, "order_status_history", models.OrderStatusHistory{}.TableName())
	var historyRows int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM order_status_history WHERE order_id = ?", order.ID).Scan(&historyRows).Error)
	assert.EqualValues(t, 2, historyRows)
}

func TestRepositorySetPaymentInfo(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD-20260101-BBBB0002",
		Type:         enums.OrderTypeSale,
		Status:       enums.OrderStatusPendingPayment,
		TotalAmount:  decimal.NewFromInt(10),
		CurrencyCode: "USD",
		BusinessID:   uuid.New(),
		CustomerID:   uuid.New(),
	}
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.SetPaymentInfo(ctx, order.ID, enums.PaymentProviderCard, "pi_card_test"))

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.PaymentMethod)
	assert.Equal(t, enums.PaymentProviderCard, *loaded.PaymentMethod)
	require.NotNil(t, loaded.PaymentIntentID)
	assert.Equal(t, "pi_card_test", *loaded.PaymentIntentID)
}

func TestRepositoryOrderNumberUnique(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := &models.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD-20260101-CCCC0003",
		Type:         enums.OrderTypeSale,
		Status:       enums.OrderStatusPendingPayment,
		TotalAmount:  decimal.NewFromInt(10),
		CurrencyCode: "USD",
		BusinessID:   uuid.New(),
		CustomerID:   uuid.New(),
	}
	require.NoError(t, repo.Create(ctx, first))

	dup := *first
	dup.ID = uuid.New()
	assert.Error(t, repo.Create(ctx, &dup))
}
