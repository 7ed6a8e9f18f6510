package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apsara-ai/derma/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8880")
				convey.So(cfg.TopN, convey.ShouldEqual, 10)
				convey.So(cfg.ReviewTopK, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("DERMA_ADDR", ":8080")
			_ = os.Setenv("DERMA_TOP_N", "5")
			_ = os.Setenv("DERMA_CONCERN_THRESHOLD", "0.5")
			_ = os.Setenv("DERMA_CATALOG_PATH", "/tmp/products.csv")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.TopN, convey.ShouldEqual, 5)
				convey.So(cfg.ConcernThreshold, convey.ShouldEqual, 0.5)
				convey.So(cfg.CatalogPath, convey.ShouldEqual, "/tmp/products.csv")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
top_n: 7
review_ttl_seconds: 120
session_idle_timeout_seconds: 60
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("DERMA_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values should override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TopN, convey.ShouldEqual, 7)
				convey.So(cfg.ReviewTTLSeconds, convey.ShouldEqual, 120)
				convey.So(cfg.SessionIdleTimeoutSeconds, convey.ShouldEqual, 60)
			})
		})

		convey.Convey("When loading config with invalid values", func() {
			_ = os.Setenv("DERMA_TOP_N", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail with an invalid-config kind", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"DERMA_CONFIG",
		"DERMA_ADDR",
		"DERMA_TOP_N",
		"DERMA_CONCERN_THRESHOLD",
		"DERMA_CATALOG_PATH",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "derma.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
