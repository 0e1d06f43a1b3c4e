package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fekuna/omnipos-pricing-service/config"
	"github.com/fekuna/omnipos-pricing-service/internal/app"
	"github.com/fekuna/omnipos-pricing-service/internal/price"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `usage: partitions <command> [flags]

commands:
  provision   create the current month's partition and the months ahead
  archive     detach partitions older than the retention window
  list        print attached partitions`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.LoadEnv()

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	ahead := fs.Int("ahead", cfg.Partitions.MonthsAhead, "months to provision after the current one")
	retention := fs.Int("retention", cfg.Partitions.RetentionMonths, "months of history to keep attached")
	_ = fs.Parse(os.Args[2:])

	appLogger := app.NewLogger(cfg)
	defer appLogger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Partition work needs only the database.
	cfg.Postgres.AutoMigrate = cmd == "provision" && cfg.Postgres.AutoMigrate
	a, err := app.New(ctx, cfg, appLogger, app.Options{})
	if err != nil {
		appLogger.Fatal("Could not connect", zap.Error(err))
	}
	defer a.Close()

	now := time.Now().UTC()
	switch cmd {
	case "provision":
		names, err := a.Prices.ProvisionPartitions(ctx, now, *ahead)
		if err != nil {
			appLogger.Fatal("Provisioning failed", zap.Strings("created", names), zap.Error(err))
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "archive":
		if *retention <= 0 {
			appLogger.Fatal("Retention must be positive", zap.Int("retention", *retention))
		}
		cutoff := price.MonthStart(now).AddDate(0, -*retention, 0)
		names, err := a.Prices.ArchiveBefore(ctx, cutoff)
		if err != nil {
			appLogger.Fatal("Archiving failed", zap.Strings("archived", names), zap.Error(err))
		}
		appLogger.Info("Partitions archived", zap.Time("cutoff", cutoff), zap.Int("count", len(names)))
		for _, n := range names {
			fmt.Println(n)
		}
	case "list":
		parts, err := a.Prices.ListPartitions(ctx)
		if err != nil {
			appLogger.Fatal("Listing failed", zap.Error(err))
		}
		for _, p := range parts {
			fmt.Printf("%s\t%s\t%s\n", p.Name, p.From.Format("2006-01-02"), p.To.Format("2006-01-02"))
		}
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}
