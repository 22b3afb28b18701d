package webhooks

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mercanto-labs/mercanto-backend/api/responses"
	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// ProviderWebhook receives provider callbacks. The payload signature is
// verified by the provider implementation before any state changes; replayed
// deliveries are acknowledged without reapplying their effects.
func ProviderWebhook(gateway payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(chi.URLParam(r, "provider"))
		provider, err := enums.ParsePaymentProvider(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown provider"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "failed to read payload"))
			return
		}

		order, err := gateway.ProcessWebhook(r.Context(), provider, payload, r.Header)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"order_id":     order.ID.String(),
			"order_status": order.Status.String(),
		})
	}
}
