package stock

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

func TestDepleteFEFOOrdering(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	actor := uuid.New()

	variant := seedVariant(t, db, 30)
	day := 24 * time.Hour
	late := seedBatch(t, db, variant.ID, 10, timePtr(time.Now().Add(5*day)))
	soon := seedBatch(t, db, variant.ID, 10, timePtr(time.Now().Add(1*day)))
	undated := seedBatch(t, db, variant.ID, 10, nil)

	updated, err := svc.DepleteFEFO(ctx, DepleteInput{
		VariantID:     variant.ID,
		Quantity:      15,
		MovementType:  enums.MovementTypeSale,
		Reason:        "order ORD-TEST",
		PerformedByID: actor,
	})
	if err != nil {
		t.Fatalf("deplete: %v", err)
	}
	if updated.QuantityInStock != 15 {
		t.Fatalf("expected cached total 15, got %d", updated.QuantityInStock)
	}

	if got := batchQuantity(t, db, soon.ID); got != 0 {
		t.Fatalf("expected soonest batch emptied, got %d", got)
	}
	if got := batchQuantity(t, db, late.ID); got != 5 {
		t.Fatalf("expected 5 left in later batch, got %d", got)
	}
	if got := batchQuantity(t, db, undated.ID); got != 10 {
		t.Fatalf("expected undated batch untouched, got %d", got)
	}

	movements := loadMovements(t, db, variant.ID)
	if len(movements) != 1 {
		t.Fatalf("expected exactly one movement, got %d", len(movements))
	}
	if movements[0].QuantityChange != -15 || movements[0].NewQuantity != 15 {
		t.Fatalf("unexpected movement: %+v", movements[0])
	}
	assertConservation(t, db, variant.ID)
}

func TestDepleteFEFOInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()

	variant := seedVariant(t, db, 5)
	batch := seedBatch(t, db, variant.ID, 5, nil)

	_, err := svc.DepleteFEFO(ctx, DepleteInput{
		VariantID:     variant.ID,
		Quantity:      6,
		MovementType:  enums.MovementTypeSale,
		Reason:        "too much",
		PerformedByID: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := batchQuantity(t, db, batch.ID); got != 5 {
		t.Fatalf("expected batch untouched, got %d", got)
	}
	if movements := loadMovements(t, db, variant.ID); len(movements) != 0 {
		t.Fatalf("expected no movements, got %d", len(movements))
	}
}

func TestDepleteFEFODesyncDetected(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()

	// Cached total claims 10 but batches only cover 4.
	variant := seedVariant(t, db, 10)
	seedBatch(t, db, variant.ID, 4, nil)

	_, err := svc.DepleteFEFO(ctx, DepleteInput{
		VariantID:     variant.ID,
		Quantity:      8,
		MovementType:  enums.MovementTypeSale,
		Reason:        "desync",
		PerformedByID: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if movements := loadMovements(t, db, variant.ID); len(movements) != 0 {
		t.Fatalf("expected no movements after aborted depletion, got %d", len(movements))
	}
}

func TestDepleteFromBatch(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	actor := uuid.New()

	variant := seedVariant(t, db, 10)
	target := seedBatch(t, db, variant.ID, 6, timePtr(time.Now().Add(48*time.Hour)))
	other := seedBatch(t, db, variant.ID, 4, nil)

	updated, err := svc.DepleteFromBatch(ctx, BatchDepleteInput{
		VariantID:     variant.ID,
		BatchID:       target.ID,
		Quantity:      2,
		MovementType:  enums.MovementTypeLoss,
		Reason:        "breakage",
		PerformedByID: actor,
	})
	if err != nil {
		t.Fatalf("deplete from batch: %v", err)
	}
	if updated.QuantityInStock != 8 {
		t.Fatalf("expected cached total 8, got %d", updated.QuantityInStock)
	}
	if got := batchQuantity(t, db, target.ID); got != 4 {
		t.Fatalf("expected 4 left in target batch, got %d", got)
	}
	if got := batchQuantity(t, db, other.ID); got != 4 {
		t.Fatalf("expected other batch untouched, got %d", got)
	}

	otherVariant := seedVariant(t, db, 0)
	_, err = svc.DepleteFromBatch(ctx, BatchDepleteInput{
		VariantID:     otherVariant.ID,
		BatchID:       target.ID,
		Quantity:      1,
		MovementType:  enums.MovementTypeLoss,
		Reason:        "wrong variant",
		PerformedByID: actor,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for mismatched batch, got %v", err)
	}

	_, err = svc.DepleteFromBatch(ctx, BatchDepleteInput{
		VariantID:     variant.ID,
		BatchID:       target.ID,
		Quantity:      99,
		MovementType:  enums.MovementTypeLoss,
		Reason:        "too much",
		PerformedByID: actor,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for oversized batch depletion, got %v", err)
	}

	_, err = svc.DepleteFromBatch(ctx, BatchDepleteInput{
		VariantID:     variant.ID,
		BatchID:       uuid.New(),
		Quantity:      1,
		MovementType:  enums.MovementTypeLoss,
		Reason:        "missing",
		PerformedByID: actor,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown batch, got %v", err)
	}
	assertConservation(t, db, variant.ID)
}

func TestAddBatchAndIncrementAsNewLot(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	actor := uuid.New()

	variant := seedVariant(t, db, 0)

	updated, err := svc.AddBatch(ctx, AddBatchInput{
		VariantID:      variant.ID,
		Quantity:       12,
		ExpirationDate: timePtr(time.Now().Add(30 * 24 * time.Hour)),
		MovementType:   enums.MovementTypePurchaseEntry,
		Reason:         "restock",
		PerformedByID:  actor,
	})
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if updated.QuantityInStock != 12 {
		t.Fatalf("expected cached total 12, got %d", updated.QuantityInStock)
	}

	updated, err = svc.IncrementAsNewLot(ctx, IncrementInput{
		VariantID:     variant.ID,
		Quantity:      3,
		MovementType:  enums.MovementTypeReturn,
		Reason:        "customer return",
		PerformedByID: actor,
	})
	if err != nil {
		t.Fatalf("increment as new lot: %v", err)
	}
	if updated.QuantityInStock != 15 {
		t.Fatalf("expected cached total 15, got %d", updated.QuantityInStock)
	}

	var batches []models.ProductBatch
	if err := db.Where("variant_id = ?", variant.ID).Find(&batches).Error; err != nil {
		t.Fatalf("load batches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected a fresh lot per increment, got %d batches", len(batches))
	}

	movements := loadMovements(t, db, variant.ID)
	if len(movements) != 2 {
		t.Fatalf("expected two movements, got %d", len(movements))
	}
	assertConservation(t, db, variant.ID)
}

func TestAddBatchRejectsPastExpiration(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	variant := seedVariant(t, db, 0)

	_, err := svc.AddBatch(context.Background(), AddBatchInput{
		VariantID:      variant.ID,
		Quantity:       1,
		ExpirationDate: timePtr(time.Now().Add(-time.Hour)),
		MovementType:   enums.MovementTypePurchaseEntry,
		Reason:         "stale",
		PerformedByID:  uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordExpiredLossesIdempotent(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()
	actor := uuid.New()

	businessID := uuid.New()
	variant := seedVariantForBusiness(t, db, businessID, 20)
	expiredA := seedBatch(t, db, variant.ID, 7, timePtr(time.Now().Add(-48*time.Hour)))
	expiredB := seedBatch(t, db, variant.ID, 3, timePtr(time.Now().Add(-time.Hour)))
	fresh := seedBatch(t, db, variant.ID, 10, timePtr(time.Now().Add(72*time.Hour)))

	recorded, err := svc.RecordExpiredLosses(ctx, businessID, actor)
	if err != nil {
		t.Fatalf("record expired losses: %v", err)
	}
	if recorded != 2 {
		t.Fatalf("expected 2 losses recorded, got %d", recorded)
	}
	if got := batchQuantity(t, db, expiredA.ID); got != 0 {
		t.Fatalf("expected expired batch zeroed, got %d", got)
	}
	if got := batchQuantity(t, db, expiredB.ID); got != 0 {
		t.Fatalf("expected expired batch zeroed, got %d", got)
	}
	if got := batchQuantity(t, db, fresh.ID); got != 10 {
		t.Fatalf("expected fresh batch untouched, got %d", got)
	}

	recorded, err = svc.RecordExpiredLosses(ctx, businessID, actor)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if recorded != 0 {
		t.Fatalf("expected second run to record nothing, got %d", recorded)
	}

	movements := loadMovements(t, db, variant.ID)
	if len(movements) != 2 {
		t.Fatalf("expected one movement per expired batch, got %d", len(movements))
	}
	for _, movement := range movements {
		if movement.Type != enums.MovementTypeExpiration {
			t.Fatalf("unexpected movement type %s", movement.Type)
		}
	}
	assertConservation(t, db, variant.ID)
}

func TestFindExpiringSoon(t *testing.T) {
	t.Parallel()

	db := newStockTestDB(t)
	svc := newStockService(t, db)
	ctx := context.Background()

	businessID := uuid.New()
	variant := seedVariantForBusiness(t, db, businessID, 30)
	day := 24 * time.Hour
	within := seedBatch(t, db, variant.ID, 10, timePtr(time.Now().Add(3*day)))
	seedBatch(t, db, variant.ID, 10, timePtr(time.Now().Add(30*day)))
	seedBatch(t, db, variant.ID, 10, nil)

	batches, err := svc.FindExpiringSoon(ctx, businessID, 7)
	if err != nil {
		t.Fatalf("find expiring soon: %v", err)
	}
	if len(batches) != 1 || batches[0].ID != within.ID {
		t.Fatalf("expected only the 3-day batch, got %+v", batches)
	}
}

func newStockTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
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

func newStockService(t *testing.T, db *gorm.DB) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "stock-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), &gormTxRunner{db: db}, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedVariant(t *testing.T, db *gorm.DB, quantity int) *models.ProductVariant {
	return seedVariantForBusiness(t, db, uuid.New(), quantity)
}

func seedVariantForBusiness(t *testing.T, db *gorm.DB, businessID uuid.UUID, quantity int) *models.ProductVariant {
	t.Helper()

	variant := &models.ProductVariant{
		ID:              uuid.New(),
		BusinessID:      businessID,
		Name:            "Test Variant",
		SKU:             "SKU-" + uuid.NewString()[:8],
		Price:           decimal.NewFromInt(10),
		PurchasePrice:   decimal.NewFromInt(6),
		QuantityInStock: quantity,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func seedBatch(t *testing.T, db *gorm.DB, variantID uuid.UUID, quantity int, expiration *time.Time) *models.ProductBatch {
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

func batchQuantity(t *testing.T, db *gorm.DB, batchID uuid.UUID) int {
	t.Helper()

	var batch models.ProductBatch
	if err := db.First(&batch, "id = ?", batchID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	return batch.Quantity
}

func loadMovements(t *testing.T, db *gorm.DB, variantID uuid.UUID) []models.StockMovement {
	t.Helper()

	var movements []models.StockMovement
	if err := db.Where("variant_id = ?", variantID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	return movements
}

func assertConservation(t *testing.T, db *gorm.DB, variantID uuid.UUID) {
	t.Helper()

	var variant models.ProductVariant
	if err := db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	var sum int
	row := db.Model(&models.ProductBatch{}).
		Where("variant_id = ?", variantID).
		Select("COALESCE(SUM(quantity), 0)").
		Row()
	if err := row.Scan(&sum); err != nil {
		t.Fatalf("sum batches: %v", err)
	}
	if variant.QuantityInStock != sum {
		t.Fatalf("cache desync: cached %d, batches sum %d", variant.QuantityInStock, sum)
	}
}

func timePtr(v time.Time) *time.Time {
	return &v
}
