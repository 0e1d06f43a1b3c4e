// Package app wires the store handle, infrastructure clients and use cases
// shared by the service binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-pricing-service/config"
	"github.com/fekuna/omnipos-pricing-service/internal/analytics"
	analyticsRepoPkg "github.com/fekuna/omnipos-pricing-service/internal/analytics/repository"
	analyticsUCPkg "github.com/fekuna/omnipos-pricing-service/internal/analytics/usecase"
	"github.com/fekuna/omnipos-pricing-service/internal/catalog"
	"github.com/fekuna/omnipos-pricing-service/internal/catalog/matcher"
	catalogRepoPkg "github.com/fekuna/omnipos-pricing-service/internal/catalog/repository"
	catalogSearchPkg "github.com/fekuna/omnipos-pricing-service/internal/catalog/search"
	catalogUCPkg "github.com/fekuna/omnipos-pricing-service/internal/catalog/usecase"
	"github.com/fekuna/omnipos-pricing-service/internal/diff"
	"github.com/fekuna/omnipos-pricing-service/internal/ingestion"
	ingestionUCPkg "github.com/fekuna/omnipos-pricing-service/internal/ingestion/usecase"
	"github.com/fekuna/omnipos-pricing-service/internal/insight"
	insightRepoPkg "github.com/fekuna/omnipos-pricing-service/internal/insight/repository"
	insightUCPkg "github.com/fekuna/omnipos-pricing-service/internal/insight/usecase"
	"github.com/fekuna/omnipos-pricing-service/internal/normalizer"
	"github.com/fekuna/omnipos-pricing-service/internal/price"
	priceRepoPkg "github.com/fekuna/omnipos-pricing-service/internal/price/repository"
	priceUCPkg "github.com/fekuna/omnipos-pricing-service/internal/price/usecase"
	"github.com/fekuna/omnipos-pricing-service/internal/seller"
	sellerRepoPkg "github.com/fekuna/omnipos-pricing-service/internal/seller/repository"
	sellerUCPkg "github.com/fekuna/omnipos-pricing-service/internal/seller/usecase"
	"github.com/fekuna/omnipos-pricing-service/migrations"
	"github.com/fekuna/omnipos-pricing-service/pkg/broker"
	"github.com/fekuna/omnipos-pricing-service/pkg/cache"
	"github.com/fekuna/omnipos-pricing-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-pricing-service/pkg/logger"
	"github.com/fekuna/omnipos-pricing-service/pkg/search"
	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options selects which optional infrastructure a binary needs.
type Options struct {
	Redis    bool
	Search   bool
	Producer bool
	Consumer bool
}

type App struct {
	Cfg *config.Config
	Log logger.ZapLogger
	DB  *sqlx.DB

	Redis    *cache.RedisClient
	Search   *search.Client
	Producer *broker.KafkaProducer
	Consumer *broker.KafkaConsumer

	Sellers   seller.UseCase
	Catalog   catalog.UseCase
	Prices    price.UseCase
	Ingestion ingestion.UseCase
	Analytics analytics.UseCase
	Insights  insight.UseCase
}

func NewLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	return logger.NewZapLogger(logConfig)
}

func New(ctx context.Context, cfg *config.Config, log logger.ZapLogger, opts Options) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	// 1. Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.DB = db
	log.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.AutoMigrate {
		if err := migrations.Apply(ctx, db); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("Database schema up to date")
	}

	// 2. Optional infrastructure. Each degrades instead of failing startup.
	if opts.Redis && cfg.Redis.Enabled {
		a.Redis, err = cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Could not connect to Redis (insight cache disabled)", zap.Error(err))
			a.Redis = nil
		} else {
			log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if opts.Search && cfg.Elastic.Enabled {
		a.Search, err = search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			log.Warn("Could not connect to Elasticsearch (catalog candidates from Postgres only)", zap.Error(err))
			a.Search = nil
		} else {
			log.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	if opts.Producer && cfg.Kafka.Enabled {
		a.Producer = broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.PriceChangesTopic,
		})
		log.Info("Kafka producer ready", zap.String("topic", cfg.Kafka.PriceChangesTopic))
	}

	if opts.Consumer && cfg.Kafka.Enabled {
		a.Consumer = broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.ScrapeTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		log.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.ScrapeTopic))
	}

	// 3. Repositories and use cases
	a.wire()
	return a, nil
}

func (a *App) wire() {
	cfg, log := a.Cfg, a.Log

	sellerRepo := sellerRepoPkg.NewPGRepository(a.DB)
	catalogRepo := catalogRepoPkg.NewPGRepository(a.DB)
	priceRepo := priceRepoPkg.NewPGRepository(a.DB)
	analyticsRepo := analyticsRepoPkg.NewPGRepository(a.DB)
	insightRepo := insightRepoPkg.NewPGRepository(a.DB)

	// Interfaces stay nil unless the client exists.
	var (
		candidates catalog.CandidateSource
		indexer    catalog.Indexer
		publisher  ingestion.Publisher
		insightC   insight.Cache
	)
	if a.Search != nil {
		index := catalogSearchPkg.NewCatalogIndex(a.Search, cfg.Elastic.WritesPerSecond)
		candidates, indexer = index, index
	}
	if a.Producer != nil {
		publisher = a.Producer
	}
	if a.Redis != nil {
		insightC = a.Redis
	}

	a.Sellers = sellerUCPkg.NewSellerUseCase(sellerRepo, log)
	a.Catalog = catalogUCPkg.NewCatalogUseCase(
		catalogRepo,
		matcher.New(cfg.Pipeline.MatchThreshold),
		candidates,
		indexer,
		cfg.Pipeline.CandidateLimit,
		log,
	)
	a.Prices = priceUCPkg.NewPriceUseCase(priceRepo, log)
	a.Ingestion = ingestionUCPkg.NewIngestionUseCase(
		normalizer.New(cfg.Pipeline.DefaultCategory),
		a.Sellers,
		a.Catalog,
		a.Prices,
		publisher,
		ingestionUCPkg.Settings{
			DiffThreshold:   cfg.Pipeline.DiffThreshold,
			Scope:           diff.ParseScope(cfg.Pipeline.DiffScope),
			DefaultCurrency: cfg.Pipeline.DefaultCurrency,
			Concurrency:     cfg.Pipeline.BatchConcurrency,
		},
		log,
	)
	a.Analytics = analyticsUCPkg.NewAnalyticsUseCase(analyticsRepo, analyticsUCPkg.Settings{
		ShortWindow:       cfg.Analytics.ShortWindow,
		LongWindow:        cfg.Analytics.LongWindow,
		StableBandPercent: cfg.Analytics.StableBandPercent,
		DropThreshold:     cfg.Analytics.DropThreshold,
		RiseThreshold:     cfg.Analytics.RiseThreshold,
		CompareDays:       cfg.Analytics.CompareDays,
		AlertLookback:     cfg.Analytics.AlertLookback,
		AlertWindow:       cfg.Analytics.AlertWindow,
	}, log)
	a.Insights = insightUCPkg.NewInsightUseCase(insightRepo, insightC, a.Analytics, a.Prices, insightUCPkg.Settings{
		TTL:             cfg.Insight.TTL,
		CacheTTL:        cfg.Insight.CacheTTL,
		MaxObservations: cfg.Insight.MaxObservations,
	}, log)
}

// ProvisionPartitions creates the current month's partition and the
// configured months ahead.
func (a *App) ProvisionPartitions(ctx context.Context) error {
	_, err := a.Prices.ProvisionPartitions(ctx, time.Now().UTC(), a.Cfg.Partitions.MonthsAhead)
	return err
}

// Close releases every client, collecting all close errors.
func (a *App) Close() error {
	var err error
	if a.Consumer != nil {
		err = multierr.Append(err, a.Consumer.Close())
	}
	if a.Producer != nil {
		err = multierr.Append(err, a.Producer.Close())
	}
	if a.Redis != nil {
		err = multierr.Append(err, a.Redis.Close())
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}
