package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/api/responses"
	"github.com/mercanto-labs/mercanto-backend/api/validators"
	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

type payOrderRequest struct {
	Provider string            `json:"provider" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type confirmManualPaymentRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type refundOrderRequest struct {
	// Amount is optional; omitted means refund everything still refundable.
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// PayOrder opens a payment intent for a pending order via the chosen provider.
func PayOrder(gateway payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req payOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		provider, err := enums.ParsePaymentProvider(req.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment provider"))
			return
		}

		result, err := gateway.CreatePayment(r.Context(), orderID, actor, provider, req.Metadata)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ConfirmManualPayment settles a manual-method order after the seller has
// received the money out of band.
func ConfirmManualPayment(gateway payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req confirmManualPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := gateway.ConfirmManualPayment(r.Context(), orderID, actor, req.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// RefundOrder refunds part or all of a paid order through its original
// provider.
func RefundOrder(gateway payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req refundOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Amount != nil && !req.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive"))
			return
		}

		order, err := gateway.Refund(r.Context(), orderID, actor, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
