package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mercanto-labs/mercanto-backend/api/responses"
	"github.com/mercanto-labs/mercanto-backend/api/validators"
	"github.com/mercanto-labs/mercanto-backend/internal/businesses"
	"github.com/mercanto-labs/mercanto-backend/internal/catalog"
	"github.com/mercanto-labs/mercanto-backend/internal/stock"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

const defaultExpiryHorizonDays = 30

type adjustStockRequest struct {
	QuantityChange int        `json:"quantity_change" validate:"required"`
	Reason         string     `json:"reason" validate:"required"`
	BatchID        *uuid.UUID `json:"batch_id,omitempty"`
}

type addBatchRequest struct {
	Quantity       int        `json:"quantity" validate:"required,gt=0"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Reason         string     `json:"reason" validate:"required"`
}

// AdjustVariantStock applies a manual correction. Negative changes deplete
// FEFO (or one batch when batch_id is given); positive changes land as a new
// undated lot.
func AdjustVariantStock(stockSvc stock.Service, catalogSvc catalog.Service, businessSvc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, variantID, err := authorizeVariantAccess(r, catalogSvc, businessSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adjustStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.QuantityChange == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity_change must be non-zero"))
			return
		}

		var variant any
		if req.QuantityChange > 0 {
			variant, err = stockSvc.IncrementAsNewLot(r.Context(), stock.IncrementInput{
				VariantID:     variantID,
				Quantity:      req.QuantityChange,
				MovementType:  enums.MovementTypeAdjustment,
				Reason:        req.Reason,
				PerformedByID: actor,
			})
		} else if req.BatchID != nil {
			variant, err = stockSvc.DepleteFromBatch(r.Context(), stock.BatchDepleteInput{
				VariantID:     variantID,
				BatchID:       *req.BatchID,
				Quantity:      -req.QuantityChange,
				MovementType:  enums.MovementTypeAdjustment,
				Reason:        req.Reason,
				PerformedByID: actor,
			})
		} else {
			variant, err = stockSvc.DepleteFEFO(r.Context(), stock.DepleteInput{
				VariantID:     variantID,
				Quantity:      -req.QuantityChange,
				MovementType:  enums.MovementTypeAdjustment,
				Reason:        req.Reason,
				PerformedByID: actor,
			})
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, variant)
	}
}

// AddBatch receives a new lot for a variant, optionally dated.
func AddBatch(stockSvc stock.Service, catalogSvc catalog.Service, businessSvc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, variantID, err := authorizeVariantAccess(r, catalogSvc, businessSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req addBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := stockSvc.AddBatch(r.Context(), stock.AddBatchInput{
			VariantID:      variantID,
			Quantity:       req.Quantity,
			ExpirationDate: req.ExpirationDate,
			MovementType:   enums.MovementTypePurchaseEntry,
			Reason:         req.Reason,
			PerformedByID:  actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, variant)
	}
}

// ExpiringSoon lists the business's batches that expire within the horizon.
func ExpiringSoon(stockSvc stock.Service, businessSvc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, businessID, err := authorizeBusinessAccess(r, businessSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		horizon, err := validators.ParseQueryInt(r, "days", defaultExpiryHorizonDays, 1, 365)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batches, err := stockSvc.FindExpiringSoon(r.Context(), businessID, horizon)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, batches)
	}
}

// RecordExpiredLosses writes off every expired batch still holding stock.
// Safe to re-run; already written-off batches are skipped.
func RecordExpiredLosses(stockSvc stock.Service, businessSvc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, businessID, err := authorizeBusinessAccess(r, businessSvc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		written, err := stockSvc.RecordExpiredLosses(r.Context(), businessID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"batches_written_off": written})
	}
}

func authorizeVariantAccess(r *http.Request, catalogSvc catalog.Service, businessSvc businesses.Service) (uuid.UUID, uuid.UUID, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	variantID, err := validators.ParsePathUUID(r, "variantId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	variant, err := catalogSvc.GetVariant(r.Context(), variantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	allowed, err := businessSvc.CanManage(r.Context(), variant.BusinessID, actor)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !allowed {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	return actor, variantID, nil
}

func authorizeBusinessAccess(r *http.Request, businessSvc businesses.Service) (uuid.UUID, uuid.UUID, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	businessID, err := validators.ParsePathUUID(r, "businessId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	allowed, err := businessSvc.CanManage(r.Context(), businessID, actor)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !allowed {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	return actor, businessID, nil
}
