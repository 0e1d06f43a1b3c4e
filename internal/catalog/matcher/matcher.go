// Package matcher resolves a normalized product to an existing catalog item.
//
// An exact normalized-key match always wins. Otherwise every candidate's
// display name is scored against the raw name; the best score at or above the
// threshold is a match. Ties are broken by the most recently updated item and
// then by ID, so the outcome never depends on candidate order. Anything below
// the threshold means the caller should create a new catalog item. Near
// duplicates that slip through are merged later by maintenance.
package matcher

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

const DefaultThreshold = 0.85

type Decision string

const (
	DecisionExact  Decision = "exact"
	DecisionFuzzy  Decision = "fuzzy"
	DecisionCreate Decision = "create"
)

type Result struct {
	Decision Decision
	Item     *model.CatalogItem
	Score    float64
	// Tied is the number of other candidates that shared the best score.
	Tied int
}

type Matcher struct {
	threshold float64
	metric    strutil.StringMetric
}

func New(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &Matcher{threshold: threshold, metric: lev}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) Match(key, name string, candidates []model.CatalogItem) Result {
	for i := range candidates {
		if candidates[i].NormalizedKey == key {
			return Result{Decision: DecisionExact, Item: &candidates[i], Score: 1}
		}
	}

	name = clean(name)
	var (
		best      *model.CatalogItem
		bestScore float64
		tied      int
	)
	for i := range candidates {
		c := &candidates[i]
		score := m.Similarity(name, clean(c.Name))
		switch {
		case best == nil || score > bestScore:
			best, bestScore, tied = c, score, 0
		case score == bestScore:
			tied++
			if preferred(c, best) {
				best = c
			}
		}
	}

	if best == nil || bestScore < m.threshold {
		return Result{Decision: DecisionCreate, Score: bestScore}
	}
	return Result{Decision: DecisionFuzzy, Item: best, Score: bestScore, Tied: tied}
}

// Similarity is a normalized score in [0,1], 1 meaning identical.
func (m *Matcher) Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return strutil.Similarity(a, b, m.metric)
}

func preferred(a, b *model.CatalogItem) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func clean(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
