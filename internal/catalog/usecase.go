package catalog

import (
	"context"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

type UseCase interface {
	// Resolve finds the canonical item for a normalized product, creating it
	// when neither an exact key nor a fuzzy name match exists.
	Resolve(ctx context.Context, input *dto.ResolveInput) (*dto.ResolveResult, error)
	GetItem(ctx context.Context, id string) (*model.CatalogItem, error)
	ListItems(ctx context.Context, filters *dto.CatalogFilters) ([]model.CatalogItem, int, error)

	// Maintenance
	MergeItems(ctx context.Context, input *dto.MergeInput) (*model.CatalogItem, error)
}
