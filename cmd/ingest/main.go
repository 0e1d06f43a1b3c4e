package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fekuna/omnipos-pricing-service/config"
	"github.com/fekuna/omnipos-pricing-service/internal/app"
	"github.com/fekuna/omnipos-pricing-service/internal/diff"
	"github.com/fekuna/omnipos-pricing-service/internal/ingestion/dto"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		in      = flag.String("file", "-", "scrape batch JSON (object or array); - reads stdin")
		scope   = flag.String("scope", "", "diff scope override: seller or catalog_item")
		publish = flag.Bool("publish", false, "emit price-change events to Kafka")
		index   = flag.Bool("index", true, "use Elasticsearch for catalog candidates when enabled")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger := app.NewLogger(cfg)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := readInput(*in)
	if err != nil {
		appLogger.Fatal("Could not read batch file", zap.String("file", *in), zap.Error(err))
	}
	batches, err := dto.DecodeBatches(data)
	if err != nil {
		appLogger.Fatal("Could not decode batch file", zap.Error(err))
	}
	if *scope != "" {
		s := diff.ParseScope(*scope)
		for i := range batches {
			batches[i].Scope = s
		}
	}

	a, err := app.New(ctx, cfg, appLogger, app.Options{Search: *index, Producer: *publish})
	if err != nil {
		appLogger.Fatal("Could not initialize pipeline", zap.Error(err))
	}
	defer a.Close()

	results, err := a.Ingestion.IngestBatches(ctx, batches)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(results); encErr != nil {
		appLogger.Error("Could not write results", zap.Error(encErr))
	}
	if err != nil {
		a.Close()
		appLogger.Fatal("Ingestion aborted", zap.Error(err))
	}

	var accepted, rejected int
	for _, r := range results {
		if r == nil {
			continue
		}
		accepted += r.Accepted
		rejected += r.Rejected
	}
	appLogger.Info("Ingestion finished",
		zap.Int("batches", len(batches)),
		zap.Int("accepted", accepted),
		zap.Int("rejected", rejected),
	)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
