package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog/matcher"
	"github.com/fekuna/omnipos-pricing-service/internal/diff"
	"github.com/shopspring/decimal"
)

// RawItem is one scraped listing as delivered by the scraper. It is untrusted.
type RawItem struct {
	SourceURL         string            `json:"sourceUrl" validate:"required,http_url"`
	ProductName       string            `json:"productName" validate:"required"`
	Price             decimal.Decimal   `json:"price"`
	Currency          string            `json:"currency" validate:"omitempty,iso4217"`
	SellerName        string            `json:"sellerName" validate:"required"`
	InStock           *bool             `json:"inStock"`
	Brand             string            `json:"brand,omitempty"`
	Category          string            `json:"category,omitempty"`
	RawSpecifications map[string]string `json:"rawSpecifications,omitempty"`
	// ObservedAt overrides the batch timestamp when the scraper recorded one.
	ObservedAt *time.Time `json:"observedAt,omitempty"`
}

// Batch is one scraper run. SellerName is the default for items that omit it.
type Batch struct {
	SellerName string     `json:"sellerName,omitempty"`
	Scope      diff.Scope `json:"scope,omitempty"`
	ObservedAt *time.Time `json:"observedAt,omitempty"`
	Items      []RawItem  `json:"items"`
}

// SellerKey groups batches that must be ingested in order.
func (b *Batch) SellerKey() string {
	name := b.SellerName
	if name == "" && len(b.Items) > 0 {
		name = b.Items[0].SellerName
	}
	return strings.ToLower(strings.TrimSpace(name))
}

type ItemStatus string

const (
	ItemAccepted ItemStatus = "accepted"
	ItemRejected ItemStatus = "rejected"
)

type ItemResult struct {
	Index         int                    `json:"index"`
	SourceURL     string                 `json:"source_url"`
	Status        ItemStatus             `json:"status"`
	Error         string                 `json:"error,omitempty"`
	SellerID      string                 `json:"seller_id,omitempty"`
	CatalogItemID string                 `json:"catalog_item_id,omitempty"`
	NormalizedKey string                 `json:"normalized_key,omitempty"`
	ObservationID string                 `json:"observation_id,omitempty"`
	MatchDecision matcher.Decision       `json:"match_decision,omitempty"`
	MatchScore    float64                `json:"match_score,omitempty"`
	Comparison    *diff.ComparisonResult `json:"comparison,omitempty"`
}

type BatchResult struct {
	Scope      diff.Scope   `json:"scope"`
	Accepted   int          `json:"accepted"`
	Rejected   int          `json:"rejected"`
	Items      []ItemResult `json:"items"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	// Rejections aggregates the per-item validation errors.
	Rejections error `json:"-"`
}

// DecodeBatches accepts either a single batch object or an array of batches.
func DecodeBatches(data []byte) ([]Batch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty batch document")
	}
	if trimmed[0] == '[' {
		var batches []Batch
		if err := json.Unmarshal(trimmed, &batches); err != nil {
			return nil, fmt.Errorf("decode batches: %w", err)
		}
		return batches, nil
	}
	var b Batch
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return []Batch{b}, nil
}
