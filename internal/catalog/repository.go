package catalog

import (
	"context"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

type Repository interface {
	// Create returns postgres.ErrConflict when a canonical item already owns the normalized key.
	Create(ctx context.Context, item *model.CatalogItem) error
	FindByID(ctx context.Context, id string) (*model.CatalogItem, error)
	// FindByNormalizedKey prefers the canonical item over merged aliases.
	FindByNormalizedKey(ctx context.Context, key string) (*model.CatalogItem, error)
	// ListRecent returns up to limit canonical items, most recently updated first.
	ListRecent(ctx context.Context, limit int) ([]model.CatalogItem, error)
	FindAll(ctx context.Context, filters *dto.CatalogFilters) ([]model.CatalogItem, int, error)

	// MarkMerged points duplicate (and anything already merged into it) at keep.
	MarkMerged(ctx context.Context, duplicateID, keepID string) error
}

// CandidateSource supplies the bounded set of items the fuzzy matcher scores.
type CandidateSource interface {
	Candidates(ctx context.Context, name string, limit int) ([]model.CatalogItem, error)
}

// Indexer keeps an external search index in step with the catalog.
type Indexer interface {
	IndexItem(ctx context.Context, item *model.CatalogItem) error
	RemoveItem(ctx context.Context, id string) error
}
