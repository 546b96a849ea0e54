package config_test

import (
	"errors"
	"testing"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Backend, convey.ShouldEqual, config.BackendAuto)
			convey.So(cfg.ChangeQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.RecentWindowDays, convey.ShouldEqual, 7)
			convey.So(cfg.DashboardIdleMinutes, convey.ShouldEqual, 15)
			convey.So(cfg.MaxDashboards, convey.ShouldEqual, 256)
			convey.So(cfg.Facilities, convey.ShouldNotBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_ResolveBackend(t *testing.T) {
	convey.Convey("Given backend detection", t, func() {
		convey.Convey("When no remote credentials are present", func() {
			cfg := config.New()
			convey.So(cfg.ResolveBackend(), convey.ShouldEqual, config.BackendLocal)
		})

		convey.Convey("When a redis address is present", func() {
			cfg := config.New()
			cfg.RedisAddr = "localhost:6379"
			cfg.PostgresDSN = "postgres://localhost/medsafety"
			convey.So(cfg.ResolveBackend(), convey.ShouldEqual, config.BackendRedis)
		})

		convey.Convey("When only a postgres dsn is present", func() {
			cfg := config.New()
			cfg.PostgresDSN = "postgres://localhost/medsafety"
			convey.So(cfg.ResolveBackend(), convey.ShouldEqual, config.BackendPostgres)
		})

		convey.Convey("When the backend is forced", func() {
			cfg := config.New()
			cfg.RedisAddr = "localhost:6379"
			cfg.Backend = config.BackendLocal
			convey.So(cfg.ResolveBackend(), convey.ShouldEqual, config.BackendLocal)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := map[string]func(*config.Config){
			"unknown backend":         func(c *config.Config) { c.Backend = "mongo" },
			"redis without address":   func(c *config.Config) { c.Backend = config.BackendRedis },
			"postgres without dsn":    func(c *config.Config) { c.Backend = config.BackendPostgres },
			"zero queue size":         func(c *config.Config) { c.ChangeQueueSize = 0 },
			"negative recent window":  func(c *config.Config) { c.RecentWindowDays = -1 },
			"whitespace only address": func(c *config.Config) { c.Addr = "  " },
			"zero dashboard idle ttl": func(c *config.Config) { c.DashboardIdleMinutes = 0 },
			"zero dashboard cap":      func(c *config.Config) { c.MaxDashboards = 0 },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			_ = name
		}
	})
}
