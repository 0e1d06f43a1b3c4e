package price

import "github.com/shopspring/decimal"

// Limits of the price_observations.price column, NUMERIC(12, 2).
const PriceScale = 2

// MaxPrice is the smallest value the column can no longer hold.
var MaxPrice = decimal.New(1, 12-PriceScale)

// Storable reports whether p is positive and fits the column exactly, so the
// stored value is the one that was classified.
func Storable(p decimal.Decimal) bool {
	return p.IsPositive() && p.LessThan(MaxPrice) && p.Equal(p.Round(PriceScale))
}
