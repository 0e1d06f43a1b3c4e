package dto

import (
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/diff"
)

const (
	EventScrapeBatch  = "ScrapeBatchCompleted"
	EventPriceChanged = "PriceChanged"
)

type ScrapeBatchEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   Batch     `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type PriceChangedEvent struct {
	EventID   string              `json:"event_id"`
	EventType string              `json:"event_type"`
	Payload   PriceChangedPayload `json:"payload"`
	Timestamp time.Time           `json:"timestamp"`
}

type PriceChangedPayload struct {
	CatalogItemID string                `json:"catalog_item_id"`
	SellerID      string                `json:"seller_id"`
	ObservationID string                `json:"observation_id"`
	Scope         diff.Scope            `json:"scope"`
	Comparison    diff.ComparisonResult `json:"comparison"`
}
