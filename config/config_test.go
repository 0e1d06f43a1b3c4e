package config

import (
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg := LoadEnv()
	if cfg.Pipeline.MatchThreshold != 0.85 {
		t.Fatalf("match threshold: want=0.85 got=%v", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.DiffThreshold != 1.0 || cfg.Pipeline.DiffScope != "seller" {
		t.Fatalf("diff: got=%v/%s", cfg.Pipeline.DiffThreshold, cfg.Pipeline.DiffScope)
	}
	if cfg.Analytics.ShortWindow != 7 || cfg.Analytics.LongWindow != 30 {
		t.Fatalf("windows: got=%d/%d", cfg.Analytics.ShortWindow, cfg.Analytics.LongWindow)
	}
	if cfg.Analytics.StableBandPercent != 0 {
		t.Fatalf("stable band: want=0 got=%v", cfg.Analytics.StableBandPercent)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PIPELINE_MATCH_THRESHOLD", "0.9")
	t.Setenv("PIPELINE_DIFF_SCOPE", "catalog_item")
	t.Setenv("INSIGHT_TTL", "90m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ANALYTICS_LONG_WINDOW", "not-a-number")

	cfg := LoadEnv()
	if cfg.Pipeline.MatchThreshold != 0.9 {
		t.Fatalf("match threshold: want=0.9 got=%v", cfg.Pipeline.MatchThreshold)
	}
	if cfg.Pipeline.DiffScope != "catalog_item" {
		t.Fatalf("diff scope: got=%s", cfg.Pipeline.DiffScope)
	}
	if cfg.Insight.TTL != 90*time.Minute {
		t.Fatalf("insight ttl: want=90m got=%v", cfg.Insight.TTL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("brokers: got=%v", cfg.Kafka.Brokers)
	}
	if cfg.Analytics.LongWindow != 30 {
		t.Fatalf("invalid int should fall back: got=%d", cfg.Analytics.LongWindow)
	}
}
