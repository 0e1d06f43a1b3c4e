package seller

import (
	"context"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/seller/dto"
)

type UseCase interface {
	GetOrCreate(ctx context.Context, input *dto.GetOrCreateSellerInput) (*model.Seller, bool, error)
	GetSeller(ctx context.Context, id string) (*model.Seller, error)
	ListSellers(ctx context.Context, filters *dto.SellerFilters) ([]model.Seller, int, error)
}
