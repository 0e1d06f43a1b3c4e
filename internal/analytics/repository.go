package analytics

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

// Repository reads the price history. Catalog item arguments are resolved to
// the item plus every duplicate merged into it.
type Repository interface {
	// PricePoints returns every observation of the item ordered oldest first.
	PricePoints(ctx context.Context, catalogItemID string) ([]PricePoint, error)
	// RecentPrices returns the last limit observations, oldest first.
	RecentPrices(ctx context.Context, catalogItemID string, sellerID *string, limit int) ([]PricePoint, error)
	SellerPoints(ctx context.Context, catalogItemID string, from, to time.Time) ([]model.SellerPricePoint, error)

	// LatestPerScope returns, per (canonical item, seller), the newest
	// observation in [from, to]. A nil catalogItemID covers the whole catalog.
	LatestPerScope(ctx context.Context, catalogItemID *string, from, to time.Time) ([]ScopedObservation, error)
	// NearestPerScope returns, per (canonical item, seller), the observation
	// in [from, to] closest to target.
	NearestPerScope(ctx context.Context, catalogItemID *string, target, from, to time.Time) ([]ScopedObservation, error)
}
