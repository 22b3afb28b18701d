package businesses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// Service exposes the tenant membership checks the other flows need.
type Service interface {
	GetBusiness(ctx context.Context, businessID uuid.UUID) (*models.Business, error)
	// CanManage reports whether the user owns or administers the business.
	CanManage(ctx context.Context, businessID, userID uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
}

// NewService builds the business membership service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "businesses repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetBusiness(ctx context.Context, businessID uuid.UUID) (*models.Business, error) {
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}

	business, err := s.repo.FindByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load business")
	}
	return business, nil
}

func (s *service) CanManage(ctx context.Context, businessID, userID uuid.UUID) (bool, error) {
	business, err := s.GetBusiness(ctx, businessID)
	if err != nil {
		return false, err
	}
	if business.OwnerID == userID {
		return true, nil
	}

	isAdmin, err := s.repo.IsAdmin(ctx, businessID, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to check business admin")
	}
	return isAdmin, nil
}
