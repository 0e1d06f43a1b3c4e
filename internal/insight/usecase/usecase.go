package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/analytics"
	analyticsdto "github.com/fekuna/omnipos-pricing-service/internal/analytics/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/insight"
	"github.com/fekuna/omnipos-pricing-service/internal/insight/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/price"
	"github.com/fekuna/omnipos-pricing-service/pkg/cache"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix   = "insight:active:"
	versionKeyPrefix = "insight:version:"
	sweepLockKey     = "lock:insight:sweep"
)

type Settings struct {
	// TTL is how long a generated insight stays fresh. Zero never expires.
	TTL time.Duration
	// CacheTTL caps how long Redis keeps the active row.
	CacheTTL time.Duration
	// SweepLockTTL bounds how long one instance holds the sweep.
	SweepLockTTL    time.Duration
	MaxObservations int
}

type insightUseCase struct {
	repo      insight.Repository
	cache     insight.Cache // Optional
	analytics analytics.UseCase
	prices    price.UseCase
	settings  Settings
	now       func() time.Time
	logger    logger.ZapLogger
}

func NewInsightUseCase(
	repo insight.Repository,
	c insight.Cache,
	analyticsUC analytics.UseCase,
	prices price.UseCase,
	settings Settings,
	log logger.ZapLogger,
) insight.UseCase {
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = time.Hour
	}
	if settings.SweepLockTTL <= 0 {
		settings.SweepLockTTL = time.Minute
	}
	if settings.MaxObservations <= 0 {
		settings.MaxObservations = 50
	}
	return &insightUseCase{
		repo:      repo,
		cache:     c,
		analytics: analyticsUC,
		prices:    prices,
		settings:  settings,
		now:       time.Now,
		logger:    log,
	}
}

func (uc *insightUseCase) expired(ins *model.CachedInsight) bool {
	return ins.ExpiresAt != nil && !uc.now().Before(*ins.ExpiresAt)
}

// Read returns the fresh active insight for scope or ErrNoCache.
func (uc *insightUseCase) Read(ctx context.Context, scope dto.Scope) (*model.CachedInsight, error) {
	key := scope.Key()

	var (
		version    int64
		versionErr error
	)
	if uc.cache != nil {
		var cached model.CachedInsight
		err := uc.cache.GetJSON(ctx, cacheKeyPrefix+key, &cached)
		switch {
		case err == nil && !uc.expired(&cached):
			return &cached, nil
		case err != nil && !errors.Is(err, cache.ErrMiss):
			uc.logger.Warn("insight cache read failed", zap.String("scope_key", key), zap.Error(err))
		}
		// Taken before the store read so a write that lands in between
		// invalidates this reader's copy.
		version, versionErr = uc.cache.Version(ctx, versionKeyPrefix+key)
	}

	ins, err := uc.repo.GetActive(ctx, key)
	if err != nil {
		return nil, err
	}
	if ins == nil || uc.expired(ins) {
		return nil, insight.ErrNoCache
	}
	if uc.cache != nil && versionErr == nil {
		uc.cacheActive(ctx, ins, version)
	}
	return ins, nil
}

func (uc *insightUseCase) Write(ctx context.Context, scope dto.Scope, payload *dto.Payload, summary string) (*model.CachedInsight, error) {
	scope = scope.WithDefaults()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal insight payload: %w", err)
	}

	now := uc.now().UTC()
	ins := &model.CachedInsight{
		ID:            uuid.New().String(),
		ScopeKey:      scope.Key(),
		CatalogItemID: scope.CatalogItemID,
		DaysAnalyzed:  scope.Days,
		Payload:       model.JSON(raw),
		Summary:       summary,
		GeneratedAt:   now,
		IsActive:      true,
	}
	if uc.settings.TTL > 0 {
		exp := now.Add(uc.settings.TTL)
		ins.ExpiresAt = &exp
	}

	if err := uc.repo.Replace(ctx, ins); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, ins.ScopeKey)

	uc.logger.Info("insight cached", zap.String("scope_key", ins.ScopeKey), zap.String("insight_id", ins.ID))
	return ins, nil
}

// cacheActive mirrors a row read from the store into Redis, unless the scope
// was written since version was taken.
func (uc *insightUseCase) cacheActive(ctx context.Context, ins *model.CachedInsight, version int64) {
	ttl := uc.settings.CacheTTL
	if ins.ExpiresAt != nil {
		if left := ins.ExpiresAt.Sub(uc.now()); left < ttl {
			ttl = left
		}
	}
	if ttl <= 0 {
		return
	}
	_, err := uc.cache.SetJSONIfVersion(ctx, cacheKeyPrefix+ins.ScopeKey, versionKeyPrefix+ins.ScopeKey, version, ins, ttl)
	if err != nil {
		uc.logger.Warn("insight cache write failed", zap.String("scope_key", ins.ScopeKey), zap.Error(err))
	}
}

// invalidate runs after a committed change to the scope's active row. The
// version bump stops in-flight readers from caching what they loaded before.
func (uc *insightUseCase) invalidate(ctx context.Context, scopeKey string) {
	if uc.cache == nil {
		return
	}
	if _, err := uc.cache.BumpVersion(ctx, versionKeyPrefix+scopeKey); err != nil {
		uc.logger.Warn("insight cache version bump failed", zap.String("scope_key", scopeKey), zap.Error(err))
	}
	if err := uc.cache.Delete(ctx, cacheKeyPrefix+scopeKey); err != nil {
		uc.logger.Warn("insight cache invalidation failed", zap.String("scope_key", scopeKey), zap.Error(err))
	}
}

func (uc *insightUseCase) PreparePayload(ctx context.Context, scope dto.Scope) (*dto.Payload, error) {
	scope = scope.WithDefaults()
	to := uc.now().UTC()
	p := &dto.Payload{
		ScopeKey:      scope.Key(),
		CatalogItemID: scope.CatalogItemID,
		Days:          scope.Days,
		From:          to.AddDate(0, 0, -scope.Days),
		To:            to,
	}

	if scope.CatalogItemID == nil {
		alerts, err := uc.analytics.DetectAlerts(ctx, &analyticsdto.AlertInput{})
		if err != nil {
			return nil, fmt.Errorf("detect alerts: %w", err)
		}
		p.Alerts = alerts
		return p, nil
	}

	itemID := *scope.CatalogItemID
	// Range is half-open; include observations stamped exactly now.
	obs, err := uc.prices.Range(ctx, itemID, p.From, to.Add(time.Second))
	if err != nil {
		return nil, fmt.Errorf("price range: %w", err)
	}
	p.Stats = stats(obs)
	if len(obs) > uc.settings.MaxObservations {
		obs = obs[len(obs)-uc.settings.MaxObservations:]
	}
	p.Observations = make([]dto.ObservationSummary, 0, len(obs))
	for _, o := range obs {
		p.Observations = append(p.Observations, dto.ObservationSummary{
			SellerID:   o.SellerID,
			Price:      o.Price.InexactFloat64(),
			Currency:   o.Currency,
			InStock:    o.InStock,
			ObservedAt: o.ObservedAt,
		})
	}

	forecast, err := uc.analytics.Forecast(ctx, &analyticsdto.ForecastInput{CatalogItemID: itemID})
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	p.Forecast = forecast

	seasonal, err := uc.analytics.SeasonalAnalysis(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("seasonal analysis: %w", err)
	}
	p.CheapestMonth = seasonal.CheapestMonth

	sellers, err := uc.analytics.CompareSellers(ctx, &analyticsdto.CompareSellersInput{CatalogItemID: itemID, Days: scope.Days})
	if err != nil {
		return nil, fmt.Errorf("compare sellers: %w", err)
	}
	p.Sellers = sellers.Sellers

	return p, nil
}

func stats(obs []model.PriceObservation) dto.PriceStats {
	s := dto.PriceStats{Count: len(obs)}
	if len(obs) == 0 {
		return s
	}
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, o := range obs {
		v := o.Price.InexactFloat64()
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Average = math.Round(sum/float64(len(obs))*100) / 100
	return s
}

// GetOrGenerate serves the cached insight, or prepares a payload, calls the
// summarizer and caches its output. When generation or the write fails it
// serves the last known insight for the scope, however stale.
func (uc *insightUseCase) GetOrGenerate(ctx context.Context, scope dto.Scope, summarizer insight.Summarizer) (*dto.GenerateResult, error) {
	ins, err := uc.Read(ctx, scope)
	if err == nil {
		return &dto.GenerateResult{Insight: ins, Source: dto.SourceCache}, nil
	}
	if !errors.Is(err, insight.ErrNoCache) {
		return nil, err
	}

	payload, err := uc.PreparePayload(ctx, scope)
	if err != nil {
		return uc.fallback(ctx, scope, err)
	}
	summary, err := summarizer.Summarize(ctx, payload)
	if err != nil {
		return uc.fallback(ctx, scope, fmt.Errorf("summarize: %w", err))
	}
	ins, err = uc.Write(ctx, scope, payload, summary)
	if err != nil {
		return uc.fallback(ctx, scope, fmt.Errorf("write insight: %w", err))
	}
	return &dto.GenerateResult{Insight: ins, Source: dto.SourceGenerated}, nil
}

func (uc *insightUseCase) fallback(ctx context.Context, scope dto.Scope, cause error) (*dto.GenerateResult, error) {
	key := scope.Key()
	stale, err := uc.repo.LastKnown(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%v; last known insight: %w", cause, err)
	}
	if stale == nil {
		return nil, cause
	}
	uc.logger.Warn("serving stale insight",
		zap.String("scope_key", key),
		zap.String("insight_id", stale.ID),
		zap.Time("generated_at", stale.GeneratedAt),
		zap.Error(cause),
	)
	return &dto.GenerateResult{Insight: stale, Source: dto.SourceStale}, nil
}

// SweepExpired deactivates expired insights. With Redis configured only the
// instance holding the sweep lock runs it.
func (uc *insightUseCase) SweepExpired(ctx context.Context) (int, error) {
	if uc.cache != nil {
		token := uuid.New().String()
		ok, err := uc.cache.AcquireLock(ctx, sweepLockKey, token, uc.settings.SweepLockTTL)
		if err != nil {
			uc.logger.Warn("insight sweep lock unavailable, sweeping anyway", zap.Error(err))
		} else if !ok {
			uc.logger.Debug("insight sweep held by another instance")
			return 0, nil
		} else {
			defer func() {
				if err := uc.cache.ReleaseLock(ctx, sweepLockKey, token); err != nil {
					uc.logger.Warn("insight sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	keys, err := uc.repo.DeactivateExpired(ctx, uc.now().UTC())
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	for _, k := range keys {
		uc.invalidate(ctx, k)
	}

	uc.logger.Info("expired insights deactivated", zap.Int("count", len(keys)))
	return len(keys), nil
}
