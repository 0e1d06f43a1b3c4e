package model

import "time"

type CachedInsight struct {
	ID            string     `db:"id" json:"id"`
	ScopeKey      string     `db:"scope_key" json:"scope_key"`
	CatalogItemID *string    `db:"catalog_item_id" json:"catalog_item_id"`
	DaysAnalyzed  int        `db:"days_analyzed" json:"days_analyzed"`
	Payload       JSON       `db:"payload" json:"payload"`
	Summary       string     `db:"summary" json:"summary"`
	GeneratedAt   time.Time  `db:"generated_at" json:"generated_at"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expires_at"`
	IsActive      bool       `db:"is_active" json:"is_active"`
}
