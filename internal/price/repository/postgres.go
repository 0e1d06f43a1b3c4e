package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/price"
	"github.com/fekuna/omnipos-pricing-service/internal/price/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

// itemScope matches the catalog item and every duplicate merged into it.
const itemScope = `catalog_item_id IN (SELECT id FROM catalog_items WHERE id = $1 OR merged_into_id = $1)`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Append(ctx context.Context, o *model.PriceObservation) error {
	query := `
        INSERT INTO price_observations (
            id, catalog_item_id, seller_id, price, currency, in_stock,
            quantity, unit, source_url, observed_at, created_at
        )
        VALUES (
            :id, :catalog_item_id, :seller_id, :price, :currency, :in_stock,
            :quantity, :unit, :source_url, :observed_at, :created_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, o)
	switch {
	case err == nil:
		return nil
	case postgres.IsNoPartition(err):
		return &price.DataOutOfRangeError{ObservedAt: o.ObservedAt, Partition: price.PartitionName(o.ObservedAt)}
	case postgres.IsForeignKeyViolation(err), postgres.Code(err) == postgres.CodeCheckViolation:
		return fmt.Errorf("%w: %v", price.ErrConstraint, err)
	default:
		return err
	}
}

func (r *PGRepository) Latest(ctx context.Context, catalogItemID string, sellerID *string) (*model.PriceObservation, error) {
	var o model.PriceObservation
	query := `SELECT * FROM price_observations WHERE ` + itemScope
	args := []interface{}{catalogItemID}

	if sellerID != nil && *sellerID != "" {
		query += ` AND seller_id = $2`
		args = append(args, *sellerID)
	}
	// created_at breaks ties between rows observed at the same instant.
	query += ` ORDER BY observed_at DESC, created_at DESC LIMIT 1`

	err := r.DB.GetContext(ctx, &o, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) Range(ctx context.Context, catalogItemID string, from, to time.Time) ([]model.PriceObservation, error) {
	var items []model.PriceObservation
	query := `
        SELECT * FROM price_observations
        WHERE ` + itemScope + ` AND observed_at >= $2 AND observed_at < $3
        ORDER BY observed_at ASC, created_at ASC
    `
	err := r.DB.SelectContext(ctx, &items, query, catalogItemID, from, to)
	return items, err
}

func (r *PGRepository) EnsurePartition(ctx context.Context, month time.Time) (string, error) {
	start := price.MonthStart(month)
	end := start.AddDate(0, 1, 0)
	name := price.PartitionName(start)

	// Identifiers cannot be bound; name is built from integers only.
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF price_observations FOR VALUES FROM ('%s') TO ('%s')`,
		name, start.Format(time.RFC3339), end.Format(time.RFC3339),
	)
	if _, err := r.DB.ExecContext(ctx, query); err != nil {
		return "", fmt.Errorf("create partition %s: %w", name, err)
	}
	return name, nil
}

func (r *PGRepository) DetachPartition(ctx context.Context, month time.Time) error {
	name := price.PartitionName(month)
	query := fmt.Sprintf(`ALTER TABLE price_observations DETACH PARTITION %s`, name)
	if _, err := r.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("detach partition %s: %w", name, err)
	}
	return nil
}

func (r *PGRepository) ListPartitions(ctx context.Context) ([]dto.Partition, error) {
	var names []string
	query := `
        SELECT c.relname
        FROM pg_inherits i
        JOIN pg_class c ON c.oid = i.inhrelid
        JOIN pg_class p ON p.oid = i.inhparent
        WHERE p.relname = 'price_observations'
        ORDER BY c.relname
    `
	if err := r.DB.SelectContext(ctx, &names, query); err != nil {
		return nil, err
	}

	partitions := make([]dto.Partition, 0, len(names))
	for _, name := range names {
		var year, month int
		if _, err := fmt.Sscanf(name, "price_observations_y%04dm%02d", &year, &month); err != nil {
			continue // Not one of ours
		}
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		partitions = append(partitions, dto.Partition{Name: name, From: from, To: from.AddDate(0, 1, 0)})
	}
	return partitions, nil
}
