package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/internal/seller/dto"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, s *model.Seller) error {
	query := `
        INSERT INTO sellers (id, name, website_url, location, created_at, updated_at)
        VALUES (:id, :name, :website_url, :location, :created_at, :updated_at)
        ON CONFLICT (name) DO NOTHING
    `
	res, err := r.DB.NamedExecContext(ctx, query, s)
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

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Seller, error) {
	return r.findOne(ctx, `SELECT * FROM sellers WHERE id = $1 LIMIT 1`, id)
}

func (r *PGRepository) FindByName(ctx context.Context, name string) (*model.Seller, error) {
	return r.findOne(ctx, `SELECT * FROM sellers WHERE name = $1 LIMIT 1`, name)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.Seller, error) {
	var s model.Seller
	err := r.DB.GetContext(ctx, &s, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.SellerFilters) ([]model.Seller, int, error) {
	var sellers []model.Seller
	var count int

	where := ""
	args := map[string]interface{}{}
	if f.SearchQuery != "" {
		where = " WHERE name ILIKE :search"
		args["search"] = "%" + f.SearchQuery + "%"
	}

	countQuery := "SELECT count(*) FROM sellers" + where
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

	query := "SELECT * FROM sellers" + where + " ORDER BY name ASC"
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

	err = nstmt.SelectContext(ctx, &sellers, args)
	return sellers, count, err
}
