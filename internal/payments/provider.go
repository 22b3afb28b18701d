package payments

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// Provider is one payment backend. ParseWebhook must verify the payload's
// authenticity signature before trusting any of its contents.
type Provider interface {
	ID() enums.PaymentProvider
	CreateIntent(ctx context.Context, in CreateIntentInput) (*IntentResult, error)
	ParseWebhook(payload []byte, headers http.Header) (*WebhookEvent, error)
	SupportsManualConfirm() bool
	Refund(ctx context.Context, in RefundInput) (*RefundResult, error)
}

// ErrRefundNotSupported is returned by providers that cannot move money back.
func ErrRefundNotSupported(provider enums.PaymentProvider) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("provider %s does not support refunds", provider))
}

// ErrInvalidSignature rejects a webhook whose authenticity cannot be proven.
func ErrInvalidSignature(provider enums.PaymentProvider) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized,
		fmt.Sprintf("invalid %s webhook signature", provider))
}

// Registry is the process-wide read-only provider table, built once at
// startup.
type Registry struct {
	providers map[enums.PaymentProvider]Provider
}

// NewRegistry indexes the given providers by id.
func NewRegistry(providers ...Provider) (*Registry, error) {
	indexed := make(map[enums.PaymentProvider]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "nil payment provider")
		}
		if _, exists := indexed[p.ID()]; exists {
			return nil, pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("duplicate payment provider %s", p.ID()))
		}
		indexed[p.ID()] = p
	}
	return &Registry{providers: indexed}, nil
}

// Get resolves a provider by id.
func (r *Registry) Get(id enums.PaymentProvider) (Provider, error) {
	provider, ok := r.providers[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported payment provider %q", id))
	}
	return provider, nil
}
