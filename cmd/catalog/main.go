package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fekuna/omnipos-pricing-service/config"
	"github.com/fekuna/omnipos-pricing-service/internal/app"
	catalogDto "github.com/fekuna/omnipos-pricing-service/internal/catalog/dto"
	sellerDto "github.com/fekuna/omnipos-pricing-service/internal/seller/dto"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: catalog <command> [flags]

commands:
  list      list catalog items (-category, -q, -merged, -sort, -order, -page, -size)
  show      print one catalog item (-id)
  merge     merge a duplicate item into the one to keep (-keep, -dup)
  sellers   list sellers (-q, -page, -size)`

type page struct {
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Items interface{} `json:"items"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.LoadEnv()

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var (
		category = fs.String("category", "", "only items in this category")
		query    = fs.String("q", "", "substring of the name or normalized key")
		merged   = fs.Bool("merged", false, "include items merged into another")
		sortBy   = fs.String("sort", "", "name, created_at or updated_at")
		order    = fs.String("order", "desc", "asc or desc")
		pageNum  = fs.Int("page", 1, "page number")
		size     = fs.Int("size", 50, "page size; 0 lists everything")
		id       = fs.String("id", "", "catalog item id")
		keep     = fs.String("keep", "", "id of the item to keep")
		dup      = fs.String("dup", "", "id of the duplicate to merge")
	)
	_ = fs.Parse(os.Args[2:])

	appLogger := app.NewLogger(cfg)
	defer appLogger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// A merge must also drop the duplicate from the search index.
	cfg.Postgres.AutoMigrate = false
	a, err := app.New(ctx, cfg, appLogger, app.Options{Search: cmd == "merge"})
	if err != nil {
		appLogger.Fatal("Could not connect", zap.Error(err))
	}
	defer a.Close()

	var out interface{}
	switch cmd {
	case "list":
		items, total, err := a.Catalog.ListItems(ctx, &catalogDto.CatalogFilters{
			Category:      *category,
			SearchQuery:   *query,
			IncludeMerged: *merged,
			SortBy:        *sortBy,
			SortOrder:     *order,
			Page:          *pageNum,
			PageSize:      *size,
		})
		if err != nil {
			appLogger.Fatal("Listing catalog items failed", zap.Error(err))
		}
		out = page{Total: total, Page: *pageNum, Items: items}
	case "show":
		if *id == "" {
			appLogger.Fatal("-id is required")
		}
		item, err := a.Catalog.GetItem(ctx, *id)
		if err != nil {
			appLogger.Fatal("Loading catalog item failed", zap.String("id", *id), zap.Error(err))
		}
		if item == nil {
			appLogger.Fatal("Catalog item not found", zap.String("id", *id))
		}
		out = item
	case "merge":
		item, err := a.Catalog.MergeItems(ctx, &catalogDto.MergeInput{KeepID: *keep, DuplicateID: *dup})
		if err != nil {
			appLogger.Fatal("Merge failed", zap.String("keep", *keep), zap.String("dup", *dup), zap.Error(err))
		}
		out = item
	case "sellers":
		sellers, total, err := a.Sellers.ListSellers(ctx, &sellerDto.SellerFilters{
			SearchQuery: *query,
			Page:        *pageNum,
			PageSize:    *size,
		})
		if err != nil {
			appLogger.Fatal("Listing sellers failed", zap.Error(err))
		}
		out = page{Total: total, Page: *pageNum, Items: sellers}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		appLogger.Error("Could not write output", zap.Error(err))
	}
}
