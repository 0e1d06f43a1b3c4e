package dto

import (
	"fmt"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/analytics"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

const DefaultDays = 30

// Scope identifies what an insight covers. A nil CatalogItemID is the
// market-wide scope.
type Scope struct {
	CatalogItemID *string
	Days          int
}

func (s Scope) WithDefaults() Scope {
	if s.Days <= 0 {
		s.Days = DefaultDays
	}
	if s.CatalogItemID != nil && *s.CatalogItemID == "" {
		s.CatalogItemID = nil
	}
	return s
}

// Key is the scope key stored with the insight, e.g. "global:30d".
func (s Scope) Key() string {
	s = s.WithDefaults()
	target := "global"
	if s.CatalogItemID != nil {
		target = *s.CatalogItemID
	}
	return fmt.Sprintf("%s:%dd", target, s.Days)
}

type ObservationSummary struct {
	SellerID   string    `json:"seller_id"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	InStock    bool      `json:"in_stock"`
	ObservedAt time.Time `json:"observed_at"`
}

type PriceStats struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Payload is the compact input handed to the summarizer.
type Payload struct {
	ScopeKey      string                 `json:"scope_key"`
	CatalogItemID *string                `json:"catalog_item_id,omitempty"`
	Days          int                    `json:"days"`
	From          time.Time              `json:"from"`
	To            time.Time              `json:"to"`
	Stats         PriceStats             `json:"stats"`
	Observations  []ObservationSummary   `json:"observations,omitempty"`
	Forecast      *analytics.Forecast    `json:"forecast,omitempty"`
	CheapestMonth *analytics.MonthlyStat `json:"cheapest_month,omitempty"`
	Sellers       []analytics.SellerStat `json:"sellers,omitempty"`
	Alerts        []analytics.Alert      `json:"alerts,omitempty"`
}

type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
	SourceStale     Source = "stale"
)

type GenerateResult struct {
	Insight *model.CachedInsight `json:"insight"`
	Source  Source               `json:"source"`
}
