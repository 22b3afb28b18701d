package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mercanto-labs/mercanto-backend/api/middleware"
	"github.com/mercanto-labs/mercanto-backend/api/responses"
	"github.com/mercanto-labs/mercanto-backend/api/validators"
	"github.com/mercanto-labs/mercanto-backend/internal/businesses"
	"github.com/mercanto-labs/mercanto-backend/internal/orders"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

type createOrderLineRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	Type                 string                   `json:"type" validate:"required"`
	BusinessID           uuid.UUID                `json:"business_id" validate:"required"`
	CurrencyCode         string                   `json:"currency_code" validate:"required,len=3"`
	Lines                []createOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	PurchasingBusinessID *uuid.UUID               `json:"purchasing_business_id,omitempty"`
	EmployeeID           *uuid.UUID               `json:"employee_id,omitempty"`
	TableID              *uuid.UUID               `json:"table_id,omitempty"`
	ReservationDate      *time.Time               `json:"reservation_date,omitempty"`
	PaymentMethod        *string                  `json:"payment_method,omitempty"`
}

type updateOrderStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty"`
}

// CreateOrder places an order on behalf of the authenticated user. Sale
// orders deplete stock in the same transaction.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderType, err := enums.ParseOrderType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type"))
			return
		}

		in := orders.CreateOrderInput{
			Type:                 orderType,
			BusinessID:           req.BusinessID,
			CustomerID:           actor,
			CurrencyCode:         req.CurrencyCode,
			PurchasingBusinessID: req.PurchasingBusinessID,
			EmployeeID:           req.EmployeeID,
			TableID:              req.TableID,
			ReservationDate:      req.ReservationDate,
		}
		if req.PaymentMethod != nil {
			method, err := enums.ParsePaymentProvider(*req.PaymentMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
				return
			}
			in.PaymentMethod = &method
		}
		for _, line := range req.Lines {
			in.Lines = append(in.Lines, orders.CreateOrderLineInput{
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
		}

		order, err := svc.Create(r.Context(), in, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns one order with its lines and status history. Access is
// limited to the customer and the selling business's managers.
func OrderDetail(svc orders.Service, businessSvc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if order.CustomerID != actor {
			allowed, err := businessSvc.CanManage(r.Context(), order.BusinessID, actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "access denied"))
				return
			}
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateOrderStatus drives fulfillment transitions (CONFIRMED, DELIVERED,
// COMPLETED, CANCELLED...). Payment-side transitions belong to the gateway.
func UpdateOrderStatus(svc orders.Service, businessSvc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Customers may cancel their own pending orders; everything else
		// requires management rights over the selling business.
		allowed := status == enums.OrderStatusCancelled && order.CustomerID == actor
		if !allowed {
			allowed, err = businessSvc.CanManage(r.Context(), order.BusinessID, actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if !allowed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "access denied"))
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:     orderID,
			NewStatus:   status,
			TriggeredBy: actor.String(),
			Notes:       req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func actorFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	actor, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return actor, nil
}
