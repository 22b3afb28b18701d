package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

// DepleteInput describes one FEFO depletion request.
type DepleteInput struct {
	VariantID     uuid.UUID
	Quantity      int
	MovementType  enums.MovementType
	Reason        string
	PerformedByID uuid.UUID
	OrderID       *uuid.UUID
}

// BatchDepleteInput targets one specific batch, bypassing FEFO ordering.
type BatchDepleteInput struct {
	VariantID     uuid.UUID
	BatchID       uuid.UUID
	Quantity      int
	MovementType  enums.MovementType
	Reason        string
	PerformedByID uuid.UUID
}

// AddBatchInput creates a new lot for a variant.
type AddBatchInput struct {
	VariantID      uuid.UUID
	Quantity       int
	ExpirationDate *time.Time
	MovementType   enums.MovementType
	Reason         string
	PerformedByID  uuid.UUID
}

// IncrementInput adds stock as a fresh undated lot, used for corrections and
// returns where the expiry of the units is unknown.
type IncrementInput struct {
	VariantID     uuid.UUID
	Quantity      int
	MovementType  enums.MovementType
	Reason        string
	PerformedByID uuid.UUID
	OrderID       *uuid.UUID
}

// Service owns variant quantities and batch lots. Every mutating call runs
// batch update, variant update and movement insert in one transaction.
type Service interface {
	DepleteFEFO(ctx context.Context, in DepleteInput) (*models.ProductVariant, error)
	DepleteFromBatch(ctx context.Context, in BatchDepleteInput) (*models.ProductVariant, error)
	AddBatch(ctx context.Context, in AddBatchInput) (*models.ProductVariant, error)
	IncrementAsNewLot(ctx context.Context, in IncrementInput) (*models.ProductVariant, error)
	FindExpiringSoon(ctx context.Context, businessID uuid.UUID, horizonDays int) ([]models.ProductBatch, error)
	RecordExpiredLosses(ctx context.Context, businessID, performedByID uuid.UUID) (int, error)

	// DepleteFEFOTx runs the FEFO depletion inside an externally owned
	// transaction so order creation can fail as one unit with its stock writes.
	DepleteFEFOTx(ctx context.Context, tx *gorm.DB, in DepleteInput) (*models.ProductVariant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the stock ledger service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil || tx == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock service dependencies are required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func errInsufficientStock(variantID uuid.UUID, have, want int) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("insufficient stock for variant %s: have %d, want %d", variantID, have, want))
}

func (s *service) DepleteFEFO(ctx context.Context, in DepleteInput) (*models.ProductVariant, error) {
	var variant *models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.depleteFEFO(ctx, s.repo.WithTx(tx), in)
		if err != nil {
			return err
		}
		variant = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *service) DepleteFEFOTx(ctx context.Context, tx *gorm.DB, in DepleteInput) (*models.ProductVariant, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	return s.depleteFEFO(ctx, s.repo.WithTx(tx), in)
}

func (s *service) depleteFEFO(ctx context.Context, repo Repository, in DepleteInput) (*models.ProductVariant, error) {
	if err := validateMovement(in.Quantity, in.MovementType, in.PerformedByID); err != nil {
		return nil, err
	}

	variant, err := s.loadVariant(ctx, repo, in.VariantID)
	if err != nil {
		return nil, err
	}
	if variant.QuantityInStock < in.Quantity {
		return nil, errInsufficientStock(in.VariantID, variant.QuantityInStock, in.Quantity)
	}

	batches, err := repo.FindDepletableBatches(ctx, in.VariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load batches")
	}

	remaining := in.Quantity
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := batch.Quantity
		if take > remaining {
			take = remaining
		}
		ok, err := repo.DecrementBatch(ctx, batch.ID, take)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to decrement batch")
		}
		if !ok {
			return nil, errInsufficientStock(in.VariantID, variant.QuantityInStock-in.Quantity+remaining, remaining)
		}
		remaining -= take
	}
	if remaining > 0 {
		// The cached total said we had enough but the batches do not cover
		// it. The ledger and the cache disagree; abort loudly.
		err := pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("stock desync for variant %s: cached total %d not covered by batches, %d uncovered",
				in.VariantID, variant.QuantityInStock, remaining))
		s.logg.Error(ctx, "stock cache desynchronized from batch ledger", err)
		return nil, err
	}

	return s.applyVariantDecrement(ctx, repo, variant, in.Quantity, movementDraft{
		movementType:  in.MovementType,
		reason:        in.Reason,
		performedByID: in.PerformedByID,
		orderID:       in.OrderID,
	})
}

func (s *service) DepleteFromBatch(ctx context.Context, in BatchDepleteInput) (*models.ProductVariant, error) {
	if err := validateMovement(in.Quantity, in.MovementType, in.PerformedByID); err != nil {
		return nil, err
	}

	var variant *models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := s.loadVariant(ctx, repo, in.VariantID)
		if err != nil {
			return err
		}

		batch, err := repo.FindBatchByID(ctx, in.BatchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load batch")
		}
		if batch.VariantID != in.VariantID {
			return pkgerrors.New(pkgerrors.CodeValidation, "batch belongs to a different variant")
		}
		if batch.Quantity < in.Quantity {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("insufficient stock in batch %s: have %d, want %d", in.BatchID, batch.Quantity, in.Quantity))
		}

		ok, err := repo.DecrementBatch(ctx, in.BatchID, in.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to decrement batch")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("insufficient stock in batch %s", in.BatchID))
		}

		variant, err = s.applyVariantDecrement(ctx, repo, loaded, in.Quantity, movementDraft{
			movementType:  in.MovementType,
			reason:        in.Reason,
			performedByID: in.PerformedByID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *service) AddBatch(ctx context.Context, in AddBatchInput) (*models.ProductVariant, error) {
	if err := validateMovement(in.Quantity, in.MovementType, in.PerformedByID); err != nil {
		return nil, err
	}
	if in.ExpirationDate != nil && in.ExpirationDate.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration date is in the past")
	}

	var variant *models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := s.loadVariant(ctx, repo, in.VariantID)
		if err != nil {
			return err
		}

		batch := &models.ProductBatch{
			ID:             uuid.New(),
			VariantID:      in.VariantID,
			Quantity:       in.Quantity,
			ExpirationDate: in.ExpirationDate,
			ReceivedAt:     time.Now().UTC(),
		}
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create batch")
		}

		variant, err = s.applyVariantIncrement(ctx, repo, loaded, in.Quantity, movementDraft{
			movementType:  in.MovementType,
			reason:        in.Reason,
			performedByID: in.PerformedByID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *service) IncrementAsNewLot(ctx context.Context, in IncrementInput) (*models.ProductVariant, error) {
	if err := validateMovement(in.Quantity, in.MovementType, in.PerformedByID); err != nil {
		return nil, err
	}

	var variant *models.ProductVariant
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := s.loadVariant(ctx, repo, in.VariantID)
		if err != nil {
			return err
		}

		// Corrections with unknown expiry always land in a fresh undated lot
		// so the audit trail keeps each adjustment distinct.
		batch := &models.ProductBatch{
			ID:         uuid.New(),
			VariantID:  in.VariantID,
			Quantity:   in.Quantity,
			ReceivedAt: time.Now().UTC(),
		}
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create batch")
		}

		variant, err = s.applyVariantIncrement(ctx, repo, loaded, in.Quantity, movementDraft{
			movementType:  in.MovementType,
			reason:        in.Reason,
			performedByID: in.PerformedByID,
			orderID:       in.OrderID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

func (s *service) FindExpiringSoon(ctx context.Context, businessID uuid.UUID, horizonDays int) ([]models.ProductBatch, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	if horizonDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "horizon must be positive")
	}

	now := time.Now().UTC()
	until := now.AddDate(0, 0, horizonDays)
	batches, err := s.repo.FindExpiringBatches(ctx, businessID, now, until)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load expiring batches")
	}
	return batches, nil
}

func (s *service) RecordExpiredLosses(ctx context.Context, businessID, performedByID uuid.UUID) (int, error) {
	if businessID == uuid.Nil || performedByID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "business id and actor are required")
	}

	recorded := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		expired, err := repo.FindExpiredBatches(ctx, businessID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load expired batches")
		}

		for _, batch := range expired {
			ok, err := repo.ZeroBatch(ctx, batch.ID, batch.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to zero expired batch")
			}
			if !ok {
				// Another writer touched the batch since we read it; skip it
				// rather than double count the loss.
				continue
			}

			variant, err := s.loadVariant(ctx, repo, batch.VariantID)
			if err != nil {
				return err
			}
			if _, err := s.applyVariantDecrement(ctx, repo, variant, batch.Quantity, movementDraft{
				movementType:  enums.MovementTypeExpiration,
				reason:        fmt.Sprintf("expired batch %s", batch.ID),
				performedByID: performedByID,
			}); err != nil {
				return err
			}
			recorded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recorded, nil
}

type movementDraft struct {
	movementType  enums.MovementType
	reason        string
	performedByID uuid.UUID
	orderID       *uuid.UUID
}

func (s *service) applyVariantDecrement(ctx context.Context, repo Repository, variant *models.ProductVariant, quantity int, draft movementDraft) (*models.ProductVariant, error) {
	ok, err := repo.DecrementVariantStock(ctx, variant.ID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to decrement variant stock")
	}
	if !ok {
		return nil, errInsufficientStock(variant.ID, variant.QuantityInStock, quantity)
	}
	return s.recordMovement(ctx, repo, variant, -quantity, draft)
}

func (s *service) applyVariantIncrement(ctx context.Context, repo Repository, variant *models.ProductVariant, quantity int, draft movementDraft) (*models.ProductVariant, error) {
	if err := repo.IncrementVariantStock(ctx, variant.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to increment variant stock")
	}
	return s.recordMovement(ctx, repo, variant, quantity, draft)
}

// recordMovement re-reads the variant for a post-change snapshot and appends
// exactly one ledger row for the whole operation.
func (s *service) recordMovement(ctx context.Context, repo Repository, variant *models.ProductVariant, quantityChange int, draft movementDraft) (*models.ProductVariant, error) {
	updated, err := s.loadVariant(ctx, repo, variant.ID)
	if err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ID:             uuid.New(),
		VariantID:      updated.ID,
		BusinessID:     updated.BusinessID,
		PerformedByID:  draft.performedByID,
		Type:           draft.movementType,
		QuantityChange: quantityChange,
		NewQuantity:    updated.QuantityInStock,
		Reason:         draft.reason,
		OrderID:        draft.orderID,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record stock movement")
	}
	return updated, nil
}

func (s *service) loadVariant(ctx context.Context, repo Repository, variantID uuid.UUID) (*models.ProductVariant, error) {
	variant, err := repo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product variant")
	}
	return variant, nil
}

func validateMovement(quantity int, movementType enums.MovementType, performedByID uuid.UUID) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !movementType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if performedByID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "acting user is required")
	}
	return nil
}
