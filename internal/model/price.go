package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is immutable once written. Corrections are new rows.
type PriceObservation struct {
	ID            string           `db:"id" json:"id"`
	CatalogItemID string           `db:"catalog_item_id" json:"catalog_item_id"`
	SellerID      string           `db:"seller_id" json:"seller_id"`
	Price         decimal.Decimal  `db:"price" json:"price"`
	Currency      string           `db:"currency" json:"currency"`
	InStock       bool             `db:"in_stock" json:"in_stock"`
	Quantity      *decimal.Decimal `db:"quantity" json:"quantity"`
	Unit          *string          `db:"unit" json:"unit"`
	SourceURL     string           `db:"source_url" json:"source_url"`
	ObservedAt    time.Time        `db:"observed_at" json:"observed_at"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// SellerPricePoint is a price observation joined with its seller's name.
type SellerPricePoint struct {
	SellerID   string          `db:"seller_id"`
	SellerName string          `db:"seller_name"`
	Price      decimal.Decimal `db:"price"`
	InStock    bool            `db:"in_stock"`
	ObservedAt time.Time       `db:"observed_at"`
}
