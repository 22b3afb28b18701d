package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/internal/stock"
	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

func TestCreateSaleOrderDepletesStock(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()
	actor := uuid.New()

	businessID := uuid.New()
	variant := seedOrderVariant(t, db, businessID, decimal.NewFromFloat(9.50), 5)
	first := seedOrderBatch(t, db, variant.ID, 3, timePtr(time.Now().Add(24*time.Hour)))
	second := seedOrderBatch(t, db, variant.ID, 2, timePtr(time.Now().Add(72*time.Hour)))

	order, err := svc.Create(ctx, CreateOrderInput{
		Type:         enums.OrderTypeSale,
		BusinessID:   businessID,
		CustomerID:   uuid.New(),
		CurrencyCode: "USD",
		Lines:        []CreateOrderLineInput{{VariantID: variant.ID, Quantity: 1}},
	}, actor)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("expected PENDING_PAYMENT, got %s", order.Status)
	}
	if !order.TotalAmount.Equal(decimal.NewFromFloat(9.50)) {
		t.Fatalf("expected total 9.50, got %s", order.TotalAmount)
	}
	if len(order.Lines) != 1 || !order.Lines[0].UnitPrice.Equal(decimal.NewFromFloat(9.50)) {
		t.Fatalf("expected snapshotted unit price, got %+v", order.Lines)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != enums.OrderStatusPendingPayment {
		t.Fatalf("expected one initial history row, got %+v", order.StatusHistory)
	}

	var firstBatch, secondBatch models.ProductBatch
	if err := db.First(&firstBatch, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if err := db.First(&secondBatch, "id = ?", second.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if firstBatch.Quantity != 2 || secondBatch.Quantity != 2 {
		t.Fatalf("expected FEFO depletion 3->2 and 2->2, got %d and %d", firstBatch.Quantity, secondBatch.Quantity)
	}

	var movements []models.StockMovement
	if err := db.Where("variant_id = ?", variant.ID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected one SALE movement, got %d", len(movements))
	}
	if movements[0].Type != enums.MovementTypeSale || movements[0].QuantityChange != -1 || movements[0].NewQuantity != 4 {
		t.Fatalf("unexpected movement: %+v", movements[0])
	}
	if movements[0].OrderID == nil || *movements[0].OrderID != order.ID {
		t.Fatalf("expected movement linked to order")
	}
}

func TestCreateOrderAtomicRollback(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()

	businessID := uuid.New()
	variantA := seedOrderVariant(t, db, businessID, decimal.NewFromInt(5), 10)
	seedOrderBatch(t, db, variantA.ID, 10, nil)
	variantC := seedOrderVariant(t, db, businessID, decimal.NewFromInt(7), 10)
	seedOrderBatch(t, db, variantC.ID, 10, nil)

	_, err := svc.Create(ctx, CreateOrderInput{
		Type:         enums.OrderTypeSale,
		BusinessID:   businessID,
		CustomerID:   uuid.New(),
		CurrencyCode: "USD",
		Lines: []CreateOrderLineInput{
			{VariantID: variantA.ID, Quantity: 2},
			{VariantID: uuid.New(), Quantity: 1},
			{VariantID: variantC.ID, Quantity: 3},
		},
	}, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var orderCount, lineCount, movementCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	db.Model(&models.OrderLine{}).Count(&lineCount)
	db.Model(&models.StockMovement{}).Count(&movementCount)
	if orderCount != 0 || lineCount != 0 || movementCount != 0 {
		t.Fatalf("expected nothing persisted, got orders=%d lines=%d movements=%d",
			orderCount, lineCount, movementCount)
	}

	var loaded models.ProductVariant
	if err := db.First(&loaded, "id = ?", variantA.ID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if loaded.QuantityInStock != 10 {
		t.Fatalf("expected stock untouched, got %d", loaded.QuantityInStock)
	}
}

func TestCreateSaleOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	svc := newOrdersService(t, db)

	businessID := uuid.New()
	variant := seedOrderVariant(t, db, businessID, decimal.NewFromInt(5), 0)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		Type:         enums.OrderTypeSale,
		BusinessID:   businessID,
		CustomerID:   uuid.New(),
		CurrencyCode: "USD",
		Lines:        []CreateOrderLineInput{{VariantID: variant.ID, Quantity: 1}},
	}, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreatePurchaseOrderSkipsStockChecks(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	svc := newOrdersService(t, db)

	businessID := uuid.New()
	variant := seedOrderVariant(t, db, businessID, decimal.NewFromInt(4), 0)

	order, err := svc.Create(context.Background(), CreateOrderInput{
		Type:                 enums.OrderTypePurchase,
		BusinessID:           businessID,
		CustomerID:           uuid.New(),
		CurrencyCode:         "USD",
		PurchasingBusinessID: uuidPtr(uuid.New()),
		Lines:                []CreateOrderLineInput{{VariantID: variant.ID, Quantity: 50}},
	}, uuid.New())
	if err != nil {
		t.Fatalf("create purchase order: %v", err)
	}

	var movementCount int64
	db.Model(&models.StockMovement{}).Count(&movementCount)
	if movementCount != 0 {
		t.Fatalf("purchase orders must not move stock, got %d movements", movementCount)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total 200, got %s", order.TotalAmount)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	svc := newOrdersService(t, db)
	ctx := context.Background()

	businessID := uuid.New()
	variant := seedOrderVariant(t, db, businessID, decimal.NewFromInt(3), 5)
	seedOrderBatch(t, db, variant.ID, 5, nil)

	order, err := svc.Create(ctx, CreateOrderInput{
		Type:         enums.OrderTypeSale,
		BusinessID:   businessID,
		CustomerID:   uuid.New(),
		CurrencyCode: "USD",
		Lines:        []CreateOrderLineInput{{VariantID: variant.ID, Quantity: 1}},
	}, uuid.New())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:     order.ID,
		NewStatus:   enums.OrderStatusPaid,
		TriggeredBy: TriggeredBySystem,
	})
	if err != nil {
		t.Fatalf("transition to paid: %v", err)
	}
	if updated.Status != enums.OrderStatusPaid {
		t.Fatalf("expected PAID, got %s", updated.Status)
	}

	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID:     order.ID,
		NewStatus:   enums.OrderStatusPendingPayment,
		TriggeredBy: TriggeredBySystem,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected illegal transition, got %v", err)
	}

	reloaded, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(reloaded.StatusHistory) != 2 {
		t.Fatalf("expected two history rows, got %d", len(reloaded.StatusHistory))
	}
	if reloaded.StatusHistory[1].Status != enums.OrderStatusPaid ||
		reloaded.StatusHistory[1].TriggeredBy != TriggeredBySystem {
		t.Fatalf("unexpected history row: %+v", reloaded.StatusHistory[1])
	}
}

func TestCreateDepositOrder(t *testing.T) {
	t.Parallel()

	db := newOrdersTestDB(t)
	svc := newOrdersService(t, db)

	order, err := svc.CreateDepositOrder(context.Background(), DepositOrderInput{
		BusinessID:    uuid.New(),
		CustomerID:    uuid.New(),
		Amount:        decimal.NewFromInt(25),
		CurrencyCode:  "USD",
		PaymentMethod: enums.PaymentProviderCard,
	})
	if err != nil {
		t.Fatalf("create deposit order: %v", err)
	}
	if len(order.Lines) != 0 {
		t.Fatalf("deposit orders carry no lines, got %d", len(order.Lines))
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected total 25, got %s", order.TotalAmount)
	}
	if order.PaymentMethod == nil || *order.PaymentMethod != enums.PaymentProviderCard {
		t.Fatalf("expected card payment method, got %+v", order.PaymentMethod)
	}
}

func newOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, ddl := range []string{
		`CREATE TABLE product_variants (
  id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  name TEXT NOT NULL,
  sku TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0,
  purchase_price NUMERIC NOT NULL DEFAULT 0,
  quantity_in_stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE product_batches (
  id TEXT PRIMARY KEY,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0,
  expiration_date DATETIME,
  received_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE stock_movements (
  id TEXT PRIMARY KEY,
  variant_id TEXT NOT NULL,
  business_id TEXT NOT NULL,
  performed_by_id TEXT NOT NULL,
  type TEXT NOT NULL,
  quantity_change INTEGER NOT NULL,
  new_quantity INTEGER NOT NULL,
  reason TEXT NOT NULL,
  order_id TEXT,
  created_at DATETIME
);`,
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING_PAYMENT',
  total_amount NUMERIC NOT NULL,
  currency_code TEXT NOT NULL DEFAULT 'USD',
  business_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  purchasing_business_id TEXT,
  employee_id TEXT,
  table_id TEXT,
  reservation_date DATETIME,
  payment_method TEXT,
  payment_intent_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE order_status_history (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  triggered_by TEXT NOT NULL,
  notes TEXT,
  created_at DATETIME
);`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newOrdersService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	runner := &gormTxRunner{db: db}
	stockSvc, err := stock.NewService(stock.NewRepository(db), runner, logg)
	if err != nil {
		t.Fatalf("new stock service: %v", err)
	}
	svc, err := NewService(NewRepository(db), stockSvc, runner, logg)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	return svc
}

func seedOrderVariant(t *testing.T, db *gorm.DB, businessID uuid.UUID, price decimal.Decimal, quantity int) *models.ProductVariant {
	t.Helper()

	variant := &models.ProductVariant{
		ID:              uuid.New(),
		BusinessID:      businessID,
		Name:            "Test Variant",
		SKU:             "SKU-" + uuid.NewString()[:8],
		Price:           price,
		PurchasePrice:   price,
		QuantityInStock: quantity,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func seedOrderBatch(t *testing.T, db *gorm.DB, variantID uuid.UUID, quantity int, expiration *time.Time) *models.ProductBatch {
	t.Helper()

	batch := &models.ProductBatch{
		ID:             uuid.New(),
		VariantID:      variantID,
		Quantity:       quantity,
		ExpirationDate: expiration,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := db.Create(batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return batch
}

func timePtr(v time.Time) *time.Time {
	return &v
}

func uuidPtr(v uuid.UUID) *uuid.UUID {
	return &v
}
