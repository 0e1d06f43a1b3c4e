package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

func (r *PGRepository) GetActive(ctx context.Context, scopeKey string) (*model.CachedInsight, error) {
	return r.findOne(ctx, `SELECT * FROM cached_insights WHERE scope_key = $1 AND is_active LIMIT 1`, scopeKey)
}

func (r *PGRepository) LastKnown(ctx context.Context, scopeKey string) (*model.CachedInsight, error) {
	query := `
        SELECT * FROM cached_insights
        WHERE scope_key = $1
        ORDER BY is_active DESC, generated_at DESC
        LIMIT 1
    `
	return r.findOne(ctx, query, scopeKey)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.CachedInsight, error) {
	var ins model.CachedInsight
	err := r.DB.GetContext(ctx, &ins, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ins, nil
}

// Replace serializes writers per scope with a transaction-scoped advisory
// lock, then deactivates and inserts.
func (r *PGRepository) Replace(ctx context.Context, ins *model.CachedInsight) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ins.ScopeKey); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cached_insights SET is_active = FALSE WHERE scope_key = $1 AND is_active`,
		ins.ScopeKey,
	); err != nil {
		return err
	}

	query := `
        INSERT INTO cached_insights (
            id, scope_key, catalog_item_id, days_analyzed, payload, summary,
            generated_at, expires_at, is_active
        )
        VALUES (
            :id, :scope_key, :catalog_item_id, :days_analyzed, :payload, :summary,
            :generated_at, :expires_at, TRUE
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, ins); err != nil {
		if postgres.IsUniqueViolation(err) {
			return postgres.ErrConflict
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	ins.IsActive = true
	return nil
}

func (r *PGRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]string, error) {
	var keys []string
	query := `
        UPDATE cached_insights SET is_active = FALSE
        WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
        RETURNING scope_key
    `
	if err := r.DB.SelectContext(ctx, &keys, query, now); err != nil {
		return nil, err
	}
	return keys, nil
}
