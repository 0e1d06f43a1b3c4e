package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, item *model.CatalogItem) error {
	query := `
        INSERT INTO catalog_items (
            id, name, brand, category, attributes, normalized_key,
            merged_into_id, created_at, updated_at
        )
        VALUES (
            :id, :name, :brand, :category, :attributes, :normalized_key,
            :merged_into_id, :created_at, :updated_at
        )
        ON CONFLICT (normalized_key) WHERE merged_into_id IS NULL DO NOTHING
    `
	res, err := r.DB.NamedExecContext(ctx, query, item)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return postgres.ErrConflict
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return postgres.ErrConflict
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.CatalogItem, error) {
	return r.findOne(ctx, `SELECT * FROM catalog_items WHERE id = $1 LIMIT 1`, id)
}

func (r *PGRepository) FindByNormalizedKey(ctx context.Context, key string) (*model.CatalogItem, error) {
	query := `
        SELECT * FROM catalog_items
        WHERE normalized_key = $1
        ORDER BY (merged_into_id IS NULL) DESC, updated_at DESC
        LIMIT 1
    `
	return r.findOne(ctx, query, key)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.CatalogItem, error) {
	var item model.CatalogItem
	err := r.DB.GetContext(ctx, &item, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) ListRecent(ctx context.Context, limit int) ([]model.CatalogItem, error) {
	var items []model.CatalogItem
	query := `
        SELECT * FROM catalog_items
        WHERE merged_into_id IS NULL
        ORDER BY updated_at DESC, id ASC
        LIMIT $1
    `
	err := r.DB.SelectContext(ctx, &items, query, limit)
	return items, err
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.CatalogFilters) ([]model.CatalogItem, int, error) {
	var items []model.CatalogItem
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if !f.IncludeMerged {
		conditions = append(conditions, "merged_into_id IS NULL")
	}
	if f.Category != "" {
		conditions = append(conditions, "category = :category")
		args["category"] = f.Category
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(name ILIKE :search OR normalized_key ILIKE :search)")
		args["search"] = "%" + f.SearchQuery + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM catalog_items" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	orderBy := "updated_at DESC"
	if f.SortBy != "" {
		// Whitelisted to keep user input out of the SQL
		switch f.SortBy {
		case "name":
			orderBy = "name"
		case "created_at":
			orderBy = "created_at"
		default:
			orderBy = "updated_at"
		}
		if strings.ToLower(f.SortOrder) == "asc" {
			orderBy += " ASC"
		} else {
			orderBy += " DESC"
		}
	}

	query := fmt.Sprintf("SELECT * FROM catalog_items%s ORDER BY %s", whereClause, orderBy)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *PGRepository) MarkMerged(ctx context.Context, duplicateID, keepID string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	// Keep aliases one hop from their canonical item.
	if _, err := tx.ExecContext(ctx,
		`UPDATE catalog_items SET merged_into_id = $1, updated_at = $2 WHERE merged_into_id = $3`,
		keepID, now, duplicateID,
	); err != nil {
		return fmt.Errorf("repoint aliases: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE catalog_items SET merged_into_id = $1, updated_at = $2 WHERE id = $3 AND merged_into_id IS NULL`,
		keepID, now, duplicateID,
	)
	if err != nil {
		return fmt.Errorf("mark duplicate: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("catalog item %s is missing or already merged", duplicateID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE catalog_items SET updated_at = $1 WHERE id = $2`, now, keepID,
	); err != nil {
		return fmt.Errorf("touch canonical item: %w", err)
	}

	return tx.Commit()
}
