package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.ProfileStore, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.ProfileBudgetBytes, convey.ShouldEqual, 49152)
			convey.So(cfg.FeedDefaultLimit, convey.ShouldEqual, 20)
			convey.So(cfg.FeedMaxLimit, convey.ShouldEqual, 60)
			convey.So(cfg.ReelPageSize, convey.ShouldEqual, 14)
			convey.So(cfg.SourceTimeout(), convey.ShouldEqual, 2500*time.Millisecond)
			convey.So(cfg.PoolCacheTTL(), convey.ShouldEqual, time.Duration(0))
			convey.So(cfg.DebugMode, convey.ShouldBeFalse)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "tailor")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "personalize")
			convey.So(cfg.Collections["female"], convey.ShouldContain, "womens-tops")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with bad values", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":      func(c *config.Config) { c.Addr = " " },
			"unknown store":   func(c *config.Config) { c.ProfileStore = "redis" },
			"zero budget":     func(c *config.Config) { c.ProfileBudgetBytes = 0 },
			"inverted limits": func(c *config.Config) { c.FeedDefaultLimit = 80 },
			"negative ttl":    func(c *config.Config) { c.PoolCacheTTLMS = -1 },
			"bad gender":      func(c *config.Config) { c.Collections["kids"] = []string{"x"} },
			"empty namespace": func(c *config.Config) { c.MetricsNamespace = "" },
			"dashed subsys":   func(c *config.Config) { c.MetricsSubsystem = "per-sonalize" },
		}
		for name, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(name, convey.ShouldNotBeEmpty)
		}
	})
}

func TestConfigLoader_Defaults(t *testing.T) {
	convey.Convey("Given no file and no environment overrides", t, func() {
		t.Setenv(config.EnvFile, "")
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
		convey.So(cfg.VendorCap, convey.ShouldEqual, 3)
	})
}

func TestConfigLoader_Env(t *testing.T) {
	convey.Convey("Given TAILOR_ environment variables", t, func() {
		t.Setenv("TAILOR_ADDR", ":8080")
		t.Setenv("TAILOR_QUEUE_SIZE", "500")
		t.Setenv("TAILOR_DEBUG_MODE", "true")
		t.Setenv("TAILOR_HALF_LIFE_DAYS", "7.5")
		t.Setenv("TAILOR_PROFILE_STORE", "badger")

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
		convey.So(cfg.EventQueueSize, convey.ShouldEqual, 500)
		convey.So(cfg.DebugMode, convey.ShouldBeTrue)
		convey.So(cfg.HalfLifeDays, convey.ShouldEqual, 7.5)
		convey.So(cfg.ProfileStore, convey.ShouldEqual, config.StoreBadger)
	})
}

func TestConfigLoader_File(t *testing.T) {
	convey.Convey("Given a YAML file and an env override", t, func() {
		path := filepath.Join(t.TempDir(), "tailor.yaml")
		yamlContent := `
addr: ":9090"
feed_default_limit: 10
pool_cache_ttl_ms: 5000
metrics_labels:
  instance: "eu-1"
collections:
  female: ["womens-all"]
`
		convey.So(os.WriteFile(path, []byte(yamlContent), 0o600), convey.ShouldBeNil)
		t.Setenv(config.EnvFile, path)
		t.Setenv("TAILOR_FEED_MAX_LIMIT", "30")

		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
		convey.So(cfg.FeedDefaultLimit, convey.ShouldEqual, 10)
		convey.So(cfg.FeedMaxLimit, convey.ShouldEqual, 30)
		convey.So(cfg.PoolCacheTTL(), convey.ShouldEqual, 5*time.Second)
		convey.So(cfg.Collections, convey.ShouldResemble, map[string][]string{"female": {"womens-all"}})
		convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"instance": "eu-1"})
	})
}

func TestConfigLoader_Errors(t *testing.T) {
	convey.Convey("Given a missing config file", t, func() {
		t.Setenv(config.EnvFile, filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := config.Load(context.Background())
		convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
	})

	convey.Convey("Given an unknown profile store", t, func() {
		t.Setenv(config.EnvFile, "")
		t.Setenv("TAILOR_PROFILE_STORE", "sqlite")
		_, err := config.Load(context.Background())
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}
