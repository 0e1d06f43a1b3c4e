package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/analytics"
	"github.com/fekuna/omnipos-pricing-service/internal/analytics/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"go.uber.org/zap"
)

// Settings tunes the analyses. Zero values fall back to the package defaults.
type Settings struct {
	ShortWindow       int
	LongWindow        int
	StableBandPercent float64
	DropThreshold     float64
	RiseThreshold     float64
	CompareDays       int
	// AlertLookback is how far back the baseline observation sits.
	AlertLookback time.Duration
	// AlertWindow is the recency window for "current" and the tolerance
	// around the baseline target.
	AlertWindow time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.ShortWindow <= 0 {
		s.ShortWindow = analytics.DefaultShortWindow
	}
	if s.LongWindow <= 0 {
		s.LongWindow = analytics.DefaultLongWindow
	}
	if s.DropThreshold <= 0 {
		s.DropThreshold = analytics.DefaultDropThreshold
	}
	if s.RiseThreshold <= 0 {
		s.RiseThreshold = analytics.DefaultRiseThreshold
	}
	if s.CompareDays <= 0 {
		s.CompareDays = 30
	}
	if s.AlertLookback <= 0 {
		s.AlertLookback = 7 * 24 * time.Hour
	}
	if s.AlertWindow <= 0 {
		s.AlertWindow = 24 * time.Hour
	}
	return s
}

var ErrMissingItem = errors.New("catalog item id is required")

type analyticsUseCase struct {
	repo     analytics.Repository
	settings Settings
	now      func() time.Time
	logger   logger.ZapLogger
}

func NewAnalyticsUseCase(repo analytics.Repository, settings Settings, log logger.ZapLogger) analytics.UseCase {
	return &analyticsUseCase{
		repo:     repo,
		settings: settings.withDefaults(),
		now:      time.Now,
		logger:   log,
	}
}

func (uc *analyticsUseCase) SeasonalAnalysis(ctx context.Context, catalogItemID string) (*analytics.SeasonalAnalysis, error) {
	if catalogItemID == "" {
		return nil, ErrMissingItem
	}
	points, err := uc.repo.PricePoints(ctx, catalogItemID)
	if err != nil {
		return nil, err
	}
	res := analytics.Seasonal(points)
	res.CatalogItemID = catalogItemID
	return &res, nil
}

func (uc *analyticsUseCase) CompareSellers(ctx context.Context, input *dto.CompareSellersInput) (*analytics.SellerComparison, error) {
	if input == nil || input.CatalogItemID == "" {
		return nil, ErrMissingItem
	}
	days := input.Days
	if days <= 0 {
		days = uc.settings.CompareDays
	}
	to := uc.now().UTC()
	from := to.AddDate(0, 0, -days)

	// The window is half-open, so nudge the upper bound to include "now".
	points, err := uc.repo.SellerPoints(ctx, input.CatalogItemID, from, to.Add(time.Second))
	if err != nil {
		return nil, err
	}

	res := &analytics.SellerComparison{
		CatalogItemID: input.CatalogItemID,
		From:          from,
		To:            to,
		Sellers:       analytics.CompareSellers(points),
	}
	if len(res.Sellers) > 0 {
		res.Cheapest = &res.Sellers[0]
	}
	return res, nil
}

func (uc *analyticsUseCase) Forecast(ctx context.Context, input *dto.ForecastInput) (*analytics.Forecast, error) {
	if input == nil || input.CatalogItemID == "" {
		return nil, ErrMissingItem
	}
	points, err := uc.repo.RecentPrices(ctx, input.CatalogItemID, input.SellerID, uc.settings.LongWindow)
	if err != nil {
		return nil, err
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	trend := analytics.AnalyzeTrend(prices, uc.settings.ShortWindow, uc.settings.LongWindow, uc.settings.StableBandPercent)
	rec, reason := analytics.Recommend(trend.Direction)

	uc.logger.Debug("forecast computed",
		zap.String("catalog_item_id", input.CatalogItemID),
		zap.String("direction", string(trend.Direction)),
		zap.Int("samples", trend.Samples),
	)

	return &analytics.Forecast{
		CatalogItemID:  input.CatalogItemID,
		SellerID:       input.SellerID,
		Trend:          trend,
		Recommendation: rec,
		Reason:         reason,
	}, nil
}

func (uc *analyticsUseCase) DetectAlerts(ctx context.Context, input *dto.AlertInput) ([]analytics.Alert, error) {
	if input == nil {
		input = &dto.AlertInput{}
	}
	drop, rise := uc.settings.DropThreshold, uc.settings.RiseThreshold
	if input.DropThreshold != nil {
		drop = *input.DropThreshold
	}
	if input.RiseThreshold != nil {
		rise = *input.RiseThreshold
	}

	now := uc.now().UTC()
	window := uc.settings.AlertWindow

	current, err := uc.repo.LatestPerScope(ctx, input.CatalogItemID, now.Add(-window), now)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return []analytics.Alert{}, nil
	}

	target := now.Add(-uc.settings.AlertLookback)
	baseline, err := uc.repo.NearestPerScope(ctx, input.CatalogItemID, target, target.Add(-window), target.Add(window))
	if err != nil {
		return nil, err
	}

	alerts := analytics.DetectAlerts(current, baseline, drop, rise)
	if len(alerts) > 0 {
		uc.logger.Info("price alerts detected", zap.Int("count", len(alerts)))
	}
	return alerts, nil
}
