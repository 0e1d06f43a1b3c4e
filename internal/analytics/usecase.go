package analytics

import (
	"context"

	"github.com/fekuna/omnipos-pricing-service/internal/analytics/dto"
)

type UseCase interface {
	SeasonalAnalysis(ctx context.Context, catalogItemID string) (*SeasonalAnalysis, error)
	CompareSellers(ctx context.Context, input *dto.CompareSellersInput) (*SellerComparison, error)
	Forecast(ctx context.Context, input *dto.ForecastInput) (*Forecast, error)
	DetectAlerts(ctx context.Context, input *dto.AlertInput) ([]Alert, error)
}
