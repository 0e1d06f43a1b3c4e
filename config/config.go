package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Elastic    ElasticsearchConfig
	Pipeline   PipelineConfig
	Analytics  AnalyticsConfig
	Insight    InsightConfig
	Partitions PartitionsConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	ScrapeTopic       string
	GroupID           string
	PriceChangesTopic string
}

type ElasticsearchConfig struct {
	Enabled   bool
	Addresses []string
	Username  string
	Password  string
	// WritesPerSecond throttles catalog index syncs.
	WritesPerSecond float64
}

type PipelineConfig struct {
	MatchThreshold   float64
	CandidateLimit   int
	DiffThreshold    float64
	DiffScope        string
	DefaultCategory  string
	DefaultCurrency  string
	BatchConcurrency int
}

type AnalyticsConfig struct {
	ShortWindow       int
	LongWindow        int
	DropThreshold     float64
	RiseThreshold     float64
	StableBandPercent float64
	CompareDays       int
	AlertLookback     time.Duration
	AlertWindow       time.Duration
}

type InsightConfig struct {
	TTL             time.Duration
	CacheTTL        time.Duration
	SweepInterval   time.Duration
	MaxObservations int
}

type PartitionsConfig struct {
	MonthsAhead      int
	ProvisionOnStart bool
	RetentionMonths  int
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8085"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_pricing"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			AutoMigrate:     getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:           getEnvBool("KAFKA_ENABLED", true),
			Brokers:           getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ScrapeTopic:       getEnv("KAFKA_TOPIC_SCRAPES", "scraper.batches"),
			GroupID:           getEnv("KAFKA_GROUP_PRICING", "pricing"),
			PriceChangesTopic: getEnv("KAFKA_TOPIC_PRICE_CHANGES", "price.changes"),
		},
		Elastic: ElasticsearchConfig{
			Enabled:         getEnvBool("ELASTICSEARCH_ENABLED", true),
			Addresses:       getEnvSlice("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Username:        getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:        getEnv("ELASTICSEARCH_PASSWORD", ""),
			WritesPerSecond: getEnvFloat("ELASTICSEARCH_WRITES_PER_SECOND", 20),
		},
		Pipeline: PipelineConfig{
			MatchThreshold:   getEnvFloat("PIPELINE_MATCH_THRESHOLD", 0.85),
			CandidateLimit:   getEnvInt("PIPELINE_CANDIDATE_LIMIT", 200),
			DiffThreshold:    getEnvFloat("PIPELINE_DIFF_THRESHOLD", 1.0),
			DiffScope:        getEnv("PIPELINE_DIFF_SCOPE", "seller"),
			DefaultCategory:  getEnv("PIPELINE_DEFAULT_CATEGORY", "pellets"),
			DefaultCurrency:  getEnv("PIPELINE_DEFAULT_CURRENCY", "EUR"),
			BatchConcurrency: getEnvInt("PIPELINE_BATCH_CONCURRENCY", 4),
		},
		Analytics: AnalyticsConfig{
			ShortWindow:       getEnvInt("ANALYTICS_SHORT_WINDOW", 7),
			LongWindow:        getEnvInt("ANALYTICS_LONG_WINDOW", 30),
			DropThreshold:     getEnvFloat("ANALYTICS_DROP_THRESHOLD", 5),
			RiseThreshold:     getEnvFloat("ANALYTICS_RISE_THRESHOLD", 5),
			StableBandPercent: getEnvFloat("ANALYTICS_STABLE_BAND", 0),
			CompareDays:       getEnvInt("ANALYTICS_COMPARE_DAYS", 30),
			AlertLookback:     getEnvDuration("ANALYTICS_ALERT_LOOKBACK", 7*24*time.Hour),
			AlertWindow:       getEnvDuration("ANALYTICS_ALERT_WINDOW", 24*time.Hour),
		},
		Insight: InsightConfig{
			TTL:             getEnvDuration("INSIGHT_TTL", 24*time.Hour),
			CacheTTL:        getEnvDuration("INSIGHT_CACHE_TTL", time.Hour),
			SweepInterval:   getEnvDuration("INSIGHT_SWEEP_INTERVAL", 10*time.Minute),
			MaxObservations: getEnvInt("INSIGHT_MAX_OBSERVATIONS", 50),
		},
		Partitions: PartitionsConfig{
			MonthsAhead:      getEnvInt("PARTITIONS_MONTHS_AHEAD", 3),
			ProvisionOnStart: getEnvBool("PARTITIONS_PROVISION_ON_START", true),
			RetentionMonths:  getEnvInt("PARTITIONS_RETENTION_MONTHS", 36),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
