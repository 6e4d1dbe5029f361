package config

import (
	"fmt"
	"regexp"
	"strings"
)

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.ProfileStore {
	case StoreMemory, StoreBadger:
	default:
		return fmt.Errorf("%w: unknown profile_store %q", ErrInvalidConfig, c.ProfileStore)
	}

	if !metricName.MatchString(c.MetricsNamespace) {
		return fmt.Errorf("%w: invalid metrics_namespace %q", ErrInvalidConfig, c.MetricsNamespace)
	}
	if c.MetricsSubsystem != "" && !metricName.MatchString(c.MetricsSubsystem) {
		return fmt.Errorf("%w: invalid metrics_subsystem %q", ErrInvalidConfig, c.MetricsSubsystem)
	}

	positive := []struct {
		name string
		v    float64
	}{
		{"queue_size", float64(c.EventQueueSize)},
		{"worker_count", float64(c.WorkerCount)},
		{"profile_budget_bytes", float64(c.ProfileBudgetBytes)},
		{"half_life_days", c.HalfLifeDays},
		{"feed_default_limit", float64(c.FeedDefaultLimit)},
		{"feed_max_limit", float64(c.FeedMaxLimit)},
		{"reel_page_size", float64(c.ReelPageSize)},
		{"vendor_cap", float64(c.VendorCap)},
		{"diversity_window", float64(c.DiversityWindow)},
		{"source_timeout_ms", float64(c.SourceTimeoutMS)},
		{"breaker_failure_threshold", float64(c.BreakerFailureThreshold)},
		{"breaker_open_ms", float64(c.BreakerOpenMS)},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, p.name)
		}
	}
	if c.FeedDefaultLimit > c.FeedMaxLimit {
		return fmt.Errorf("%w: feed_default_limit exceeds feed_max_limit", ErrInvalidConfig)
	}
	if c.EarlyGuardSlots < 0 || c.PoolCacheTTLMS < 0 || c.EventsRatePerMinute < 0 || c.DedupeSize < 0 {
		return fmt.Errorf("%w: negative limits are not allowed", ErrInvalidConfig)
	}
	for g := range c.Collections {
		switch strings.ToLower(g) {
		case "male", "female", "unknown":
		default:
			return fmt.Errorf("%w: collections: unknown gender %q", ErrInvalidConfig, g)
		}
	}
	return nil
}
