// Package diff classifies a new price observation against the most recent
// prior observation in the same scope. It never touches storage.
package diff

import (
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/shopspring/decimal"
)

const DefaultThresholdPercent = 1.0

type Status string

const (
	StatusNew           Status = "new"
	StatusPriceIncrease Status = "price_increase"
	StatusPriceDecrease Status = "price_decrease"
	StatusUnchanged     Status = "unchanged"
)

// Scope selects which prior observation a new one is compared against.
type Scope string

const (
	// ScopeSeller compares against the latest observation for the same (item, seller).
	ScopeSeller Scope = "seller"
	// ScopeCatalogItem compares against the latest observation for the item from any seller.
	ScopeCatalogItem Scope = "catalog_item"
)

func ParseScope(s string) Scope {
	if Scope(s) == ScopeCatalogItem {
		return ScopeCatalogItem
	}
	return ScopeSeller
}

type ComparisonResult struct {
	Status Status `json:"status"`
	// OldPrice and OldObservedAt are nil when Status is new.
	OldPrice      *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice      decimal.Decimal  `json:"new_price"`
	ChangePercent float64          `json:"change_percent"`
	OldObservedAt *time.Time       `json:"old_observed_at,omitempty"`
	NewObservedAt time.Time        `json:"new_observed_at"`
}

var hundred = decimal.NewFromInt(100)

// Classify compares current with prior. The percent change is rounded to two
// decimals for reporting; classification uses the exact value.
func Classify(current model.PriceObservation, prior *model.PriceObservation, thresholdPercent float64) ComparisonResult {
	res := ComparisonResult{
		Status:        StatusNew,
		NewPrice:      current.Price,
		NewObservedAt: current.ObservedAt,
	}
	if prior == nil || !prior.Price.IsPositive() {
		return res
	}

	oldPrice := prior.Price
	oldAt := prior.ObservedAt
	res.OldPrice = &oldPrice
	res.OldObservedAt = &oldAt

	change := ChangePercent(oldPrice, current.Price)
	res.ChangePercent = change.Round(2).InexactFloat64()

	threshold := decimal.NewFromFloat(thresholdPercent)
	switch {
	case change.GreaterThan(threshold):
		res.Status = StatusPriceIncrease
	case change.LessThan(threshold.Neg()):
		res.Status = StatusPriceDecrease
	default:
		res.Status = StatusUnchanged
	}
	return res
}

// ChangePercent is (new - old) / old * 100. old must be non-zero.
func ChangePercent(oldPrice, newPrice decimal.Decimal) decimal.Decimal {
	return newPrice.Sub(oldPrice).Div(oldPrice).Mul(hundred)
}
