package config_test

import (
	"testing"

	"github.com/apsara-ai/derma/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8880")
			convey.So(cfg.TopN, convey.ShouldEqual, 10)
			convey.So(cfg.ConcernThreshold, convey.ShouldEqual, 0.3)
			convey.So(cfg.MinQuality, convey.ShouldEqual, 0.2)
			convey.So(cfg.ReviewTTLSeconds, convey.ShouldEqual, 3600)
			convey.So(cfg.ReviewTopK, convey.ShouldEqual, 2)
			convey.So(cfg.SessionIdleTimeoutSeconds, convey.ShouldEqual, 1800)
			convey.So(cfg.CatalogPath, convey.ShouldEqual, "data/products.csv")
			convey.So(cfg.UploadDir, convey.ShouldEqual, "uploads")
		})
	})
}
