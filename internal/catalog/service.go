package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// Service exposes read access to the product catalog for the order and
// inventory flows.
type Service interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	GetVariantForBusiness(ctx context.Context, businessID, variantID uuid.UUID) (*models.ProductVariant, error)
}

type service struct {
	repo Repository
}

// NewService builds the catalog read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}

	variant, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product variant")
	}
	return variant, nil
}

func (s *service) GetVariantForBusiness(ctx context.Context, businessID, variantID uuid.UUID) (*models.ProductVariant, error) {
	variant, err := s.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if variant.BusinessID != businessID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	return variant, nil
}
