package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/fraudwatch/internal/adapters/alert"
	"github.com/okian/fraudwatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.PreviewRows, convey.ShouldEqual, 5)
			convey.So(cfg.DisplayRows, convey.ShouldEqual, 1000)
			convey.So(cfg.AlertTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.AlertDispatchTimeout(), convey.ShouldBeLessThan, cfg.WriteTimeout())
			convey.So(cfg.Preset(), convey.ShouldEqual, alert.PresetLocal)
			convey.So(cfg.AlertSink, convey.ShouldEqual, alert.SinkWebhook)
			convey.So(cfg.Brokers(), convey.ShouldBeEmpty)
		})

		convey.Convey("When alert dispatch may outlast the response write", func() {
			cfg.AlertDispatchTimeoutMS = cfg.WriteTimeoutMS

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a bound is broken", func() {
			cfg.AlertWorkers = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}
