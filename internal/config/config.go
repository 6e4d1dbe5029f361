// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) builds a Config holding every default.
// - Load layers a YAML file and TAILOR_* environment variables on top.
// - Validate reports problems wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Profile store kinds.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DebugMode computes score breakdowns and allows ?debug=1.
	DebugMode bool `koanf:"debug_mode"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of event workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many event ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ProfileStore is "memory" or "badger"; BadgerPath is where badger
	// keeps its files (empty means in-memory).
	ProfileStore string `koanf:"profile_store"`
	BadgerPath   string `koanf:"badger_path"`

	ProfileBudgetBytes int     `koanf:"profile_budget_bytes"`
	HalfLifeDays       float64 `koanf:"half_life_days"`

	FeedDefaultLimit int `koanf:"feed_default_limit"`
	FeedMaxLimit     int `koanf:"feed_max_limit"`
	ReelPageSize     int `koanf:"reel_page_size"`

	VendorCap       int `koanf:"vendor_cap"`
	DiversityWindow int `koanf:"diversity_window"`
	EarlyGuardSlots int `koanf:"early_guard_slots"`

	SourceTimeoutMS         int     `koanf:"source_timeout_ms"`
	BreakerFailureThreshold int     `koanf:"breaker_failure_threshold"`
	BreakerOpenMS           int     `koanf:"breaker_open_ms"`
	SourceRatePerSec        float64 `koanf:"source_rate_per_sec"`
	SourceBurst             int     `koanf:"source_burst"`

	// CatalogPath points at a YAML catalog. Empty uses the bundled sample.
	CatalogPath string `koanf:"catalog_path"`

	// PoolCacheTTLMS caches merged candidate pools; 0 disables the cache.
	PoolCacheTTLMS int `koanf:"pool_cache_ttl_ms"`

	// EventsRatePerMinute limits POST /events per client IP; 0 disables it.
	EventsRatePerMinute int `koanf:"events_rate_per_minute"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name;
	// MetricsLabels are constant labels added to every series.
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`

	// Collections maps a gender (male, female, unknown) to the collection
	// handles walked for it.
	Collections map[string][]string `koanf:"collections"`
}

// New returns a Config with defaults. Context is accepted first to follow
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		EventQueueSize:          100_000,
		WorkerCount:             runtime.NumCPU() * 2,
		DedupeSize:              500_000,
		ProfileStore:            StoreMemory,
		ProfileBudgetBytes:      49_152,
		HalfLifeDays:            21,
		FeedDefaultLimit:        20,
		FeedMaxLimit:            60,
		ReelPageSize:            14,
		VendorCap:               3,
		DiversityWindow:         12,
		EarlyGuardSlots:         10,
		SourceTimeoutMS:         2500,
		BreakerFailureThreshold: 5,
		BreakerOpenMS:           30_000,
		SourceRatePerSec:        50,
		SourceBurst:             100,
		EventsRatePerMinute:     600,
		MetricsNamespace:        "tailor",
		MetricsSubsystem:        "personalize",
		Collections:             defaultCollections(),
	}
}

// defaultCollections matches the bundled sample catalog.
func defaultCollections() map[string][]string {
	return map[string][]string{
		"female": {
			"womens-tops", "womens-knitwear", "womens-dresses", "womens-bottoms",
			"womens-denim", "womens-outerwear", "womens-shoes", "womens-active",
			"womens-tailoring", "womens-accessories",
		},
		"male": {
			"mens-tops", "mens-knitwear", "mens-bottoms", "mens-denim",
			"mens-outerwear", "mens-shoes", "mens-active", "mens-tailoring",
			"mens-accessories",
		},
		"unknown": {"womens-all", "mens-all"},
	}
}

// SourceTimeout is SourceTimeoutMS as a duration.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutMS) * time.Millisecond
}

// BreakerOpenFor is BreakerOpenMS as a duration.
func (c *Config) BreakerOpenFor() time.Duration {
	return time.Duration(c.BreakerOpenMS) * time.Millisecond
}

// PoolCacheTTL is PoolCacheTTLMS as a duration.
func (c *Config) PoolCacheTTL() time.Duration {
	return time.Duration(c.PoolCacheTTLMS) * time.Millisecond
}
