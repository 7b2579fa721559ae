package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/repdao/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.ShardCount, convey.ShouldEqual, 64)
			convey.So(cfg.WitnessCapacity, convey.ShouldEqual, 64)
			convey.So(cfg.CooldownLow, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.CooldownHigh, convey.ShouldEqual, 2*time.Hour)
			convey.So(cfg.BadgeBonus, convey.ShouldEqual, 25)
			convey.So(cfg.DecayRate, convey.ShouldEqual, 2)
			convey.So(cfg.KafkaBrokers, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting each", t, func() {
		cases := map[string]func(c *config.Config){
			"addr must not be empty":          func(c *config.Config) { c.Addr = "" },
			"shard_count":                     func(c *config.Config) { c.ShardCount = 0 },
			"queue_size":                      func(c *config.Config) { c.QueueSize = -1 },
			"worker_count":                    func(c *config.Config) { c.WorkerCount = 0 },
			"witness_capacity":                func(c *config.Config) { c.WitnessCapacity = 0 },
			"decay_rate":                      func(c *config.Config) { c.DecayRate = 101 },
			"cooldown tiers":                  func(c *config.Config) { c.CooldownMid = 0 },
			"log_format must be text or json": func(c *config.Config) { c.LogFormat = "xml" },
		}

		convey.Convey("Then each is rejected as invalid", func() {
			for want, mutate := range cases {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, want)
			}
		})
	})
}
