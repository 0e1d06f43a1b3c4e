package seller

import (
	"context"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/seller/dto"
)

type Repository interface {
	// Create returns postgres.ErrConflict when a seller with the same name exists.
	Create(ctx context.Context, seller *model.Seller) error
	FindByID(ctx context.Context, id string) (*model.Seller, error)
	FindByName(ctx context.Context, name string) (*model.Seller, error)
	FindAll(ctx context.Context, filters *dto.SellerFilters) ([]model.Seller, int, error)
}
