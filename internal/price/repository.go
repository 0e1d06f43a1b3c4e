package price

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/price/dto"
)

// Repository is the insert-only observation store. There is deliberately no
// update or delete.
type Repository interface {
	Append(ctx context.Context, obs *model.PriceObservation) error

	// Latest returns the observation with the greatest observed_at for the
	// catalog item, optionally narrowed to one seller. (nil, nil) if none.
	Latest(ctx context.Context, catalogItemID string, sellerID *string) (*model.PriceObservation, error)

	// Range returns observations with from <= observed_at < to, oldest first.
	Range(ctx context.Context, catalogItemID string, from, to time.Time) ([]model.PriceObservation, error)

	// Partition maintenance
	EnsurePartition(ctx context.Context, month time.Time) (string, error)
	DetachPartition(ctx context.Context, month time.Time) error
	ListPartitions(ctx context.Context) ([]dto.Partition, error)
}
