package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/analytics"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/jmoiron/sqlx"
)

const itemScope = `o.catalog_item_id IN (SELECT id FROM catalog_items WHERE id = $1 OR merged_into_id = $1)`

// scopedSelect projects observations onto their canonical catalog item, one
// row per (item, seller). Callers append WHERE and ORDER BY.
const scopedSelect = `
        SELECT DISTINCT ON (COALESCE(c.merged_into_id, c.id), o.seller_id)
            COALESCE(c.merged_into_id, c.id) AS catalog_item_id,
            o.seller_id,
            s.name AS seller_name,
            o.price::float8 AS price,
            o.observed_at
        FROM price_observations o
        JOIN catalog_items c ON c.id = o.catalog_item_id
        JOIN sellers s ON s.id = o.seller_id
`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) PricePoints(ctx context.Context, catalogItemID string) ([]analytics.PricePoint, error) {
	var points []analytics.PricePoint
	query := `
        SELECT o.price::float8 AS price, o.observed_at
        FROM price_observations o
        WHERE ` + itemScope + `
        ORDER BY o.observed_at ASC
    `
	if err := r.DB.SelectContext(ctx, &points, query, catalogItemID); err != nil {
		return nil, err
	}
	return points, nil
}

func (r *PGRepository) RecentPrices(ctx context.Context, catalogItemID string, sellerID *string, limit int) ([]analytics.PricePoint, error) {
	var points []analytics.PricePoint
	query := `SELECT o.price::float8 AS price, o.observed_at FROM price_observations o WHERE ` + itemScope
	args := []interface{}{catalogItemID}

	if sellerID != nil && *sellerID != "" {
		query += ` AND o.seller_id = $2`
		args = append(args, *sellerID)
	}
	query += ` ORDER BY o.observed_at DESC, o.created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	if err := r.DB.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, err
	}
	// Oldest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func (r *PGRepository) SellerPoints(ctx context.Context, catalogItemID string, from, to time.Time) ([]model.SellerPricePoint, error) {
	var points []model.SellerPricePoint
	query := `
        SELECT o.seller_id, s.name AS seller_name, o.price, o.in_stock, o.observed_at
        FROM price_observations o
        JOIN sellers s ON s.id = o.seller_id
        WHERE ` + itemScope + ` AND o.observed_at >= $2 AND o.observed_at < $3
        ORDER BY o.observed_at ASC
    `
	if err := r.DB.SelectContext(ctx, &points, query, catalogItemID, from, to); err != nil {
		return nil, err
	}
	return points, nil
}

func (r *PGRepository) LatestPerScope(ctx context.Context, catalogItemID *string, from, to time.Time) ([]analytics.ScopedObservation, error) {
	var rows []analytics.ScopedObservation
	query := scopedSelect + ` WHERE o.observed_at >= $1 AND o.observed_at <= $2`
	args := []interface{}{from, to}

	if catalogItemID != nil && *catalogItemID != "" {
		query += ` AND COALESCE(c.merged_into_id, c.id) = $3`
		args = append(args, *catalogItemID)
	}
	query += ` ORDER BY COALESCE(c.merged_into_id, c.id), o.seller_id, o.observed_at DESC, o.created_at DESC`

	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PGRepository) NearestPerScope(ctx context.Context, catalogItemID *string, target, from, to time.Time) ([]analytics.ScopedObservation, error) {
	var rows []analytics.ScopedObservation
	query := scopedSelect + ` WHERE o.observed_at >= $1 AND o.observed_at <= $2`
	args := []interface{}{from, to, target}

	if catalogItemID != nil && *catalogItemID != "" {
		query += ` AND COALESCE(c.merged_into_id, c.id) = $4`
		args = append(args, *catalogItemID)
	}
	query += ` ORDER BY COALESCE(c.merged_into_id, c.id), o.seller_id,
        ABS(EXTRACT(EPOCH FROM (o.observed_at - $3::timestamptz))) ASC, o.observed_at DESC`

	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
