package dto

import (
	"github.com/fekuna/omnipos-pricing-service/internal/catalog/matcher"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
)

type ResolveInput struct {
	Name          string
	Brand         string
	Category      string
	NormalizedKey string
	Attributes    model.Attributes
}

type ResolveResult struct {
	Item     *model.CatalogItem
	Decision matcher.Decision
	Score    float64
	Created  bool
}

type MergeInput struct {
	KeepID      string
	DuplicateID string
}
