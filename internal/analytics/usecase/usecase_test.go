package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/analytics"
	"github.com/fekuna/omnipos-pricing-service/internal/analytics/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
)

// fakeRepo keeps canonical-scoped observations in memory.
type fakeRepo struct {
	rows        []analytics.ScopedObservation
	recentLimit int
}

func (r *fakeRepo) scoped(itemID string) []analytics.ScopedObservation {
	var out []analytics.ScopedObservation
	for _, o := range r.rows {
		if o.CatalogItemID == itemID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out
}

func (r *fakeRepo) PricePoints(_ context.Context, itemID string) ([]analytics.PricePoint, error) {
	var out []analytics.PricePoint
	for _, o := range r.scoped(itemID) {
		out = append(out, analytics.PricePoint{Price: o.Price, ObservedAt: o.ObservedAt})
	}
	return out, nil
}

func (r *fakeRepo) RecentPrices(ctx context.Context, itemID string, _ *string, limit int) ([]analytics.PricePoint, error) {
	r.recentLimit = limit
	all, _ := r.PricePoints(ctx, itemID)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeRepo) SellerPoints(_ context.Context, itemID string, from, to time.Time) ([]model.SellerPricePoint, error) {
	return nil, nil
}

type scopeKey struct{ item, seller string }

func (r *fakeRepo) inWindow(itemID *string, from, to time.Time) []analytics.ScopedObservation {
	var out []analytics.ScopedObservation
	for _, o := range r.rows {
		if itemID != nil && o.CatalogItemID != *itemID {
			continue
		}
		if o.ObservedAt.Before(from) || o.ObservedAt.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func (r *fakeRepo) LatestPerScope(_ context.Context, itemID *string, from, to time.Time) ([]analytics.ScopedObservation, error) {
	best := map[scopeKey]analytics.ScopedObservation{}
	for _, o := range r.inWindow(itemID, from, to) {
		k := scopeKey{o.CatalogItemID, o.SellerID}
		if cur, ok := best[k]; !ok || o.ObservedAt.After(cur.ObservedAt) {
			best[k] = o
		}
	}
	return values(best), nil
}

func (r *fakeRepo) NearestPerScope(_ context.Context, itemID *string, target, from, to time.Time) ([]analytics.ScopedObservation, error) {
	best := map[scopeKey]analytics.ScopedObservation{}
	dist := func(t time.Time) time.Duration {
		d := t.Sub(target)
		if d < 0 {
			return -d
		}
		return d
	}
	for _, o := range r.inWindow(itemID, from, to) {
		k := scopeKey{o.CatalogItemID, o.SellerID}
		if cur, ok := best[k]; !ok || dist(o.ObservedAt) < dist(cur.ObservedAt) {
			best[k] = o
		}
	}
	return values(best), nil
}

func values(m map[scopeKey]analytics.ScopedObservation) []analytics.ScopedObservation {
	out := make([]analytics.ScopedObservation, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func newTestUseCase(repo analytics.Repository, now time.Time) *analyticsUseCase {
	uc := NewAnalyticsUseCase(repo, Settings{}, logger.NewNop()).(*analyticsUseCase)
	uc.now = func() time.Time { return now }
	return uc
}

func TestDetectAlertsWeekOverWeekDrop(t *testing.T) {
	now := time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{rows: []analytics.ScopedObservation{
		// Older noise outside the baseline window.
		{CatalogItemID: "pellets", SellerID: "s1", Price: 250, ObservedAt: now.AddDate(0, 0, -20)},
		{CatalogItemID: "pellets", SellerID: "s1", Price: 235, ObservedAt: now.AddDate(0, 0, -7).Add(2 * time.Hour)},
		{CatalogItemID: "pellets", SellerID: "s1", Price: 230, ObservedAt: now.AddDate(0, 0, -3)},
		{CatalogItemID: "pellets", SellerID: "s1", Price: 210, ObservedAt: now.Add(-time.Hour)},
	}}
	uc := newTestUseCase(repo, now)

	alerts, err := uc.DetectAlerts(context.Background(), nil)
	if err != nil {
		t.Fatalf("DetectAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts: want=1 got=%d", len(alerts))
	}
	a := alerts[0]
	if a.Kind != analytics.AlertPriceDrop || a.PreviousPrice != 235 || a.CurrentPrice != 210 || a.ChangePercent != -10.64 {
		t.Fatalf("alert: got=%+v", a)
	}
}

func TestDetectAlertsThresholdOverride(t *testing.T) {
	now := time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{rows: []analytics.ScopedObservation{
		{CatalogItemID: "pellets", SellerID: "s1", Price: 235, ObservedAt: now.AddDate(0, 0, -7)},
		{CatalogItemID: "pellets", SellerID: "s1", Price: 210, ObservedAt: now},
	}}
	uc := newTestUseCase(repo, now)

	high := 15.0
	alerts, err := uc.DetectAlerts(context.Background(), &dto.AlertInput{DropThreshold: &high})
	if err != nil {
		t.Fatalf("DetectAlerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alerts above a 15%% threshold: want=0 got=%d", len(alerts))
	}
}

func TestDetectAlertsNoRecentData(t *testing.T) {
	now := time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{rows: []analytics.ScopedObservation{
		{CatalogItemID: "pellets", SellerID: "s1", Price: 235, ObservedAt: now.AddDate(0, 0, -7)},
	}}
	alerts, err := newTestUseCase(repo, now).DetectAlerts(context.Background(), nil)
	if err != nil || alerts == nil || len(alerts) != 0 {
		t.Fatalf("want empty non-nil slice, got=%v err=%v", alerts, err)
	}
}

func TestForecastUsesLongWindow(t *testing.T) {
	now := time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{}
	for i := 0; i < 40; i++ {
		price := 100.0
		if i >= 33 {
			price = 90
		}
		repo.rows = append(repo.rows, analytics.ScopedObservation{
			CatalogItemID: "pellets", SellerID: "s1", Price: price, ObservedAt: now.AddDate(0, 0, i-40),
		})
	}
	uc := newTestUseCase(repo, now)

	f, err := uc.Forecast(context.Background(), &dto.ForecastInput{CatalogItemID: "pellets"})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if repo.recentLimit != analytics.DefaultLongWindow {
		t.Fatalf("limit: want=%d got=%d", analytics.DefaultLongWindow, repo.recentLimit)
	}
	if f.Trend.Direction != analytics.TrendDecreasing || f.Recommendation != analytics.RecommendWait {
		t.Fatalf("forecast: got=%+v", f)
	}
	if f.Trend.Samples != 30 {
		t.Fatalf("samples: want=30 got=%d", f.Trend.Samples)
	}
}

func TestSeasonalAnalysisRequiresItem(t *testing.T) {
	uc := newTestUseCase(&fakeRepo{}, time.Now())
	if _, err := uc.SeasonalAnalysis(context.Background(), ""); err != ErrMissingItem {
		t.Fatalf("want ErrMissingItem, got=%v", err)
	}
}
