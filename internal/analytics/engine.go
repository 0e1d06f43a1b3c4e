// Package analytics holds the read-only aggregations over price history:
// seasonal ranking, seller comparison, moving-average trend and alerts.
// Functions in this file are pure; the use case feeds them from the store.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

const (
	DefaultShortWindow   = 7
	DefaultLongWindow    = 30
	DefaultDropThreshold = 5.0
	DefaultRiseThreshold = 5.0

	// trendEpsilon is the relative difference below which averages are equal.
	trendEpsilon = 1e-9
)

type PricePoint struct {
	Price      float64   `db:"price" json:"price"`
	ObservedAt time.Time `db:"observed_at" json:"observed_at"`
}

// ScopedObservation is an observation keyed to its canonical catalog item,
// carrying the seller's display name.
type ScopedObservation struct {
	CatalogItemID string    `db:"catalog_item_id"`
	SellerID      string    `db:"seller_id"`
	SellerName    string    `db:"seller_name"`
	Price         float64   `db:"price"`
	ObservedAt    time.Time `db:"observed_at"`
}

// Seasonal

type MonthlyStat struct {
	Month   time.Month `json:"month"`
	Name    string     `json:"name"`
	Rank    int        `json:"rank"`
	Average float64    `json:"average"`
	Min     float64    `json:"min"`
	Max     float64    `json:"max"`
	StdDev  float64    `json:"std_dev"`
	Samples int        `json:"samples"`
}

type SeasonalAnalysis struct {
	CatalogItemID      string        `json:"catalog_item_id"`
	Months             []MonthlyStat `json:"months"`
	CheapestMonth      *MonthlyStat  `json:"cheapest_month"`
	MostExpensiveMonth *MonthlyStat  `json:"most_expensive_month"`
	// SavingsPercent is how much cheaper the cheapest month is than the most expensive one.
	SavingsPercent float64 `json:"savings_percent"`
	YearsCovered   int     `json:"years_covered"`
	Samples        int     `json:"samples"`
}

// Seasonal groups points by calendar month across all years and ranks the
// months by ascending average price.
func Seasonal(points []PricePoint) SeasonalAnalysis {
	byMonth := make(map[time.Month][]float64, 12)
	years := map[int]struct{}{}
	for _, p := range points {
		t := p.ObservedAt.UTC()
		byMonth[t.Month()] = append(byMonth[t.Month()], p.Price)
		years[t.Year()] = struct{}{}
	}

	months := make([]MonthlyStat, 0, len(byMonth))
	for m, prices := range byMonth {
		avg, min, max, sd := describe(prices)
		months = append(months, MonthlyStat{
			Month:   m,
			Name:    m.String(),
			Average: avg,
			Min:     min,
			Max:     max,
			StdDev:  sd,
			Samples: len(prices),
		})
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Average != months[j].Average {
			return months[i].Average < months[j].Average
		}
		return months[i].Month < months[j].Month
	})
	for i := range months {
		months[i].Rank = i + 1
	}

	out := SeasonalAnalysis{Months: months, YearsCovered: len(years), Samples: len(points)}
	if len(months) > 0 {
		out.CheapestMonth = &months[0]
		out.MostExpensiveMonth = &months[len(months)-1]
		if hi := out.MostExpensiveMonth.Average; hi > 0 {
			out.SavingsPercent = round2((hi - out.CheapestMonth.Average) / hi * 100)
		}
	}
	return out
}

// Seller comparison

type SellerStat struct {
	SellerID         string    `json:"seller_id"`
	SellerName       string    `json:"seller_name"`
	Rank             int       `json:"rank"`
	Average          float64   `json:"average"`
	Min              float64   `json:"min"`
	Max              float64   `json:"max"`
	InStockRatio     float64   `json:"in_stock_ratio"`
	Samples          int       `json:"samples"`
	LatestPrice      float64   `json:"latest_price"`
	LatestObservedAt time.Time `json:"latest_observed_at"`
}

type SellerComparison struct {
	CatalogItemID string       `json:"catalog_item_id"`
	From          time.Time    `json:"from"`
	To            time.Time    `json:"to"`
	Sellers       []SellerStat `json:"sellers"`
	Cheapest      *SellerStat  `json:"cheapest"`
}

// CompareSellers aggregates per seller and ranks by ascending average price.
func CompareSellers(points []model.SellerPricePoint) []SellerStat {
	type acc struct {
		stat    SellerStat
		prices  []float64
		inStock int
	}
	bySeller := map[string]*acc{}
	for _, p := range points {
		a, ok := bySeller[p.SellerID]
		if !ok {
			a = &acc{stat: SellerStat{SellerID: p.SellerID, SellerName: p.SellerName}}
			bySeller[p.SellerID] = a
		}
		price := p.Price.InexactFloat64()
		a.prices = append(a.prices, price)
		if p.InStock {
			a.inStock++
		}
		if !p.ObservedAt.Before(a.stat.LatestObservedAt) {
			a.stat.LatestPrice = price
			a.stat.LatestObservedAt = p.ObservedAt
		}
	}

	stats := make([]SellerStat, 0, len(bySeller))
	for _, a := range bySeller {
		a.stat.Average, a.stat.Min, a.stat.Max, _ = describe(a.prices)
		a.stat.Samples = len(a.prices)
		a.stat.InStockRatio = round2(float64(a.inStock) / float64(len(a.prices)))
		stats = append(stats, a.stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Average != stats[j].Average {
			return stats[i].Average < stats[j].Average
		}
		return stats[i].SellerName < stats[j].SellerName
	})
	for i := range stats {
		stats[i].Rank = i + 1
	}
	return stats
}

// Trend

type TrendDirection string

const (
	TrendIncreasing   TrendDirection = "increasing"
	TrendDecreasing   TrendDirection = "decreasing"
	TrendStable       TrendDirection = "stable"
	TrendInsufficient TrendDirection = "insufficient_data"
)

type Recommendation string

const (
	RecommendBuy     Recommendation = "buy"
	RecommendWait    Recommendation = "wait"
	RecommendNeutral Recommendation = "neutral"
)

type Trend struct {
	Direction   TrendDirection `json:"direction"`
	ShortMA     float64        `json:"short_ma"`
	LongMA      float64        `json:"long_ma"`
	ShortWindow int            `json:"short_window"`
	LongWindow  int            `json:"long_window"`
	Samples     int            `json:"samples"`
	LatestPrice float64        `json:"latest_price"`
}

type Forecast struct {
	CatalogItemID  string         `json:"catalog_item_id"`
	SellerID       *string        `json:"seller_id,omitempty"`
	Trend          Trend          `json:"trend"`
	Recommendation Recommendation `json:"recommendation"`
	Reason         string         `json:"reason"`
}

// AnalyzeTrend compares the mean of the last shortWindow prices with the mean
// of the last longWindow prices (or all of them when fewer exist). prices
// must be ordered oldest first. Any difference between the averages is a
// trend; a positive stableBand (percent of the long average) widens the range
// treated as stable.
func AnalyzeTrend(prices []float64, shortWindow, longWindow int, stableBand float64) Trend {
	if shortWindow <= 0 {
		shortWindow = DefaultShortWindow
	}
	if longWindow < shortWindow {
		longWindow = shortWindow
	}

	t := Trend{ShortWindow: shortWindow, LongWindow: longWindow, Samples: len(prices)}
	if len(prices) == 0 {
		t.Direction = TrendInsufficient
		return t
	}
	t.LatestPrice = prices[len(prices)-1]
	if len(prices) < shortWindow {
		t.Direction = TrendInsufficient
		return t
	}

	short := mean(tail(prices, shortWindow))
	long := mean(tail(prices, longWindow))
	t.ShortMA = round2(short)
	t.LongMA = round2(long)

	// Floating-point noise on an otherwise flat series is not a trend.
	band := math.Abs(long) * math.Max(stableBand/100, trendEpsilon)
	switch {
	case short < long-band:
		t.Direction = TrendDecreasing
	case short > long+band:
		t.Direction = TrendIncreasing
	default:
		t.Direction = TrendStable
	}
	return t
}

// Recommend maps a trend to a purchase signal: rising prices mean buy now,
// falling prices mean wait.
func Recommend(direction TrendDirection) (Recommendation, string) {
	switch direction {
	case TrendIncreasing:
		return RecommendBuy, "short-term average is above the long-term average; prices are rising"
	case TrendDecreasing:
		return RecommendWait, "short-term average is below the long-term average; prices are falling"
	case TrendStable:
		return RecommendNeutral, "short-term and long-term averages agree; prices are stable"
	default:
		return RecommendNeutral, "not enough observations to infer a trend"
	}
}

// Alerts

type AlertKind string

const (
	AlertPriceDrop AlertKind = "price_drop"
	AlertPriceRise AlertKind = "price_rise"
)

type Alert struct {
	Kind               AlertKind `json:"kind"`
	CatalogItemID      string    `json:"catalog_item_id"`
	SellerID           string    `json:"seller_id"`
	SellerName         string    `json:"seller_name"`
	CurrentPrice       float64   `json:"current_price"`
	PreviousPrice      float64   `json:"previous_price"`
	ChangePercent      float64   `json:"change_percent"`
	CurrentObservedAt  time.Time `json:"current_observed_at"`
	PreviousObservedAt time.Time `json:"previous_observed_at"`
}

// DetectAlerts pairs each current observation with the baseline for the same
// (catalog item, seller) and reports moves beyond the thresholds, largest first.
func DetectAlerts(current, baseline []ScopedObservation, dropThreshold, riseThreshold float64) []Alert {
	type key struct{ item, seller string }
	prev := make(map[key]ScopedObservation, len(baseline))
	for _, b := range baseline {
		prev[key{b.CatalogItemID, b.SellerID}] = b
	}

	alerts := []Alert{}
	for _, c := range current {
		b, ok := prev[key{c.CatalogItemID, c.SellerID}]
		if !ok || b.Price <= 0 || !b.ObservedAt.Before(c.ObservedAt) {
			continue
		}
		change := (c.Price - b.Price) / b.Price * 100

		var kind AlertKind
		switch {
		case change < -dropThreshold:
			kind = AlertPriceDrop
		case change > riseThreshold:
			kind = AlertPriceRise
		default:
			continue
		}
		alerts = append(alerts, Alert{
			Kind:               kind,
			CatalogItemID:      c.CatalogItemID,
			SellerID:           c.SellerID,
			SellerName:         c.SellerName,
			CurrentPrice:       c.Price,
			PreviousPrice:      b.Price,
			ChangePercent:      round2(change),
			CurrentObservedAt:  c.ObservedAt,
			PreviousObservedAt: b.ObservedAt,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		ai, aj := math.Abs(alerts[i].ChangePercent), math.Abs(alerts[j].ChangePercent)
		if ai != aj {
			return ai > aj
		}
		if alerts[i].CatalogItemID != alerts[j].CatalogItemID {
			return alerts[i].CatalogItemID < alerts[j].CatalogItemID
		}
		return alerts[i].SellerID < alerts[j].SellerID
	})
	return alerts
}

// describe returns mean, min, max and sample standard deviation (0 below two samples).
func describe(xs []float64) (avg, min, max, sd float64) {
	if len(xs) == 0 {
		return 0, 0, 0, 0
	}
	min, max = xs[0], xs[0]
	for _, x := range xs {
		min = math.Min(min, x)
		max = math.Max(max, x)
	}
	avg = mean(xs)
	if len(xs) > 1 {
		var ss float64
		for _, x := range xs {
			ss += (x - avg) * (x - avg)
		}
		sd = math.Sqrt(ss / float64(len(xs)-1))
	}
	return round2(avg), min, max, round2(sd)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func tail(xs []float64, n int) []float64 {
	if n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
