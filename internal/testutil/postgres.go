// Package testutil opens the shared Postgres handle for repository
// integration tests. Tests skip unless TEST_POSTGRES_DSN is set.
package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-pricing-service/internal/model"
	"github.com/fekuna/omnipos-pricing-service/migrations"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *sqlx.DB
	dbErr  error
)

func DB(tb testing.TB) *sqlx.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		db, dbErr = postgres.Open(dsn, nil)
		if dbErr != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		dbErr = migrations.Apply(ctx, db)
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

// Seller inserts a seller with a unique name.
func Seller(tb testing.TB, db *sqlx.DB) *model.Seller {
	tb.Helper()
	now := time.Now().UTC()
	s := &model.Seller{
		BaseModel: model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		Name:      "test-seller-" + uuid.New().String(),
	}
	_, err := db.NamedExecContext(context.Background(), `
        INSERT INTO sellers (id, name, website_url, location, created_at, updated_at)
        VALUES (:id, :name, :website_url, :location, :created_at, :updated_at)
    `, s)
	if err != nil {
		tb.Fatalf("insert seller: %v", err)
	}
	return s
}

// CatalogItem inserts a canonical catalog item with a unique normalized key.
func CatalogItem(tb testing.TB, db *sqlx.DB) *model.CatalogItem {
	tb.Helper()
	now := time.Now().UTC()
	qty := 15.0
	item := &model.CatalogItem{
		BaseModel:     model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		Name:          "Test Pellets 15kg",
		Category:      "pellets",
		Attributes:    model.Attributes{Quantity: &qty, Unit: "kg", Packaging: model.PackagingBagged},
		NormalizedKey: "test_" + uuid.New().String(),
	}
	_, err := db.NamedExecContext(context.Background(), `
        INSERT INTO catalog_items (id, name, brand, category, attributes, normalized_key, merged_into_id, created_at, updated_at)
        VALUES (:id, :name, :brand, :category, :attributes, :normalized_key, :merged_into_id, :created_at, :updated_at)
    `, item)
	if err != nil {
		tb.Fatalf("insert catalog item: %v", err)
	}
	return item
}
