package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/price"
	"github.com/fekuna/omnipos-pricing-service/internal/price/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type priceUseCase struct {
	repo   price.Repository
	logger logger.ZapLogger
}

func NewPriceUseCase(repo price.Repository, log logger.ZapLogger) price.UseCase {
	return &priceUseCase{
		repo:   repo,
		logger: log,
	}
}

// Append stores obs as a new row. Identical payloads appended twice become two rows.
func (uc *priceUseCase) Append(ctx context.Context, obs *model.PriceObservation) error {
	if !obs.Price.IsPositive() {
		return fmt.Errorf("%w: price must be > 0, got %s", price.ErrConstraint, obs.Price)
	}
	if obs.CatalogItemID == "" || obs.SellerID == "" {
		return fmt.Errorf("%w: catalog item and seller are required", price.ErrConstraint)
	}
	if obs.ID == "" {
		obs.ID = uuid.New().String()
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = time.Now().UTC()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now().UTC()
	}
	return uc.repo.Append(ctx, obs)
}

func (uc *priceUseCase) Latest(ctx context.Context, catalogItemID string, sellerID *string) (*model.PriceObservation, error) {
	return uc.repo.Latest(ctx, catalogItemID, sellerID)
}

func (uc *priceUseCase) Range(ctx context.Context, catalogItemID string, from, to time.Time) ([]model.PriceObservation, error) {
	if !from.Before(to) {
		return []model.PriceObservation{}, nil
	}
	return uc.repo.Range(ctx, catalogItemID, from, to)
}

func (uc *priceUseCase) ProvisionPartitions(ctx context.Context, from time.Time, monthsAhead int) ([]string, error) {
	if monthsAhead < 0 {
		monthsAhead = 0
	}
	start := price.MonthStart(from)
	names := make([]string, 0, monthsAhead+1)
	for i := 0; i <= monthsAhead; i++ {
		name, err := uc.repo.EnsurePartition(ctx, start.AddDate(0, i, 0))
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	uc.logger.Info("price partitions provisioned",
		zap.Strings("partitions", names),
		zap.Time("from", start),
	)
	return names, nil
}

func (uc *priceUseCase) ArchiveBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	partitions, err := uc.repo.ListPartitions(ctx)
	if err != nil {
		return nil, err
	}

	var archived []string
	for _, p := range partitions {
		if p.To.After(cutoff) {
			continue
		}
		if err := uc.repo.DetachPartition(ctx, p.From); err != nil {
			return archived, err
		}
		uc.logger.Info("price partition archived", zap.String("partition", p.Name))
		archived = append(archived, p.Name)
	}
	return archived, nil
}

func (uc *priceUseCase) ListPartitions(ctx context.Context) ([]dto.Partition, error) {
	return uc.repo.ListPartitions(ctx)
}
