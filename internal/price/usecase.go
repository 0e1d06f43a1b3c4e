package price

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/price/dto"
)

type UseCase interface {
	Append(ctx context.Context, obs *model.PriceObservation) error
	Latest(ctx context.Context, catalogItemID string, sellerID *string) (*model.PriceObservation, error)
	Range(ctx context.Context, catalogItemID string, from, to time.Time) ([]model.PriceObservation, error)

	// ProvisionPartitions makes sure partitions exist for the month of from
	// and the following monthsAhead months.
	ProvisionPartitions(ctx context.Context, from time.Time, monthsAhead int) ([]string, error)
	// ArchiveBefore detaches every partition that ends on or before cutoff.
	ArchiveBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	ListPartitions(ctx context.Context) ([]dto.Partition, error)
}
