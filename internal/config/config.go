// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CatalogPath points at the product catalog CSV. A missing file yields
	// an empty catalog, not a startup failure.
	CatalogPath string `koanf:"catalog_path"`

	// UploadDir is where uploaded images are persisted.
	UploadDir string `koanf:"upload_dir"`

	// TopN caps the number of products returned per recommendation.
	TopN int `koanf:"top_n"`

	// ConcernThreshold is the minimum confidence for a concern to be
	// included in an assessment.
	ConcernThreshold float64 `koanf:"concern_threshold"`

	// SkinTypeEpsilon is the score window within which skin-type argmax
	// ties are broken lexicographically.
	SkinTypeEpsilon float64 `koanf:"skin_type_epsilon"`

	// MinQuality rejects uploads whose quality score falls below it.
	MinQuality float64 `koanf:"min_quality"`

	// MaxUploadBytes bounds the accepted image payload size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// ReviewTTLSeconds controls how long cached review results stay fresh.
	ReviewTTLSeconds int `koanf:"review_ttl_seconds"`

	// ReviewTopK sets how many concerns participate in the review query key.
	ReviewTopK int `koanf:"review_top_k"`

	// ReviewMaxResults caps videos returned per analysis.
	ReviewMaxResults int `koanf:"review_max_results"`

	// VideoSearchBaseURL and VideoSearchAPIKey configure the external
	// video search collaborator. An empty base URL disables lookups.
	VideoSearchBaseURL string `koanf:"video_search_base_url"`
	VideoSearchAPIKey  string `koanf:"video_search_api_key"`

	// SessionIdleTimeoutSeconds is the inactivity window after which a
	// session answers as not-found.
	SessionIdleTimeoutSeconds int `koanf:"session_idle_timeout_seconds"`

	// SessionSweepIntervalSeconds controls the advisory expiry sweep.
	SessionSweepIntervalSeconds int `koanf:"session_sweep_interval_seconds"`

	// ModelWeightsPath optionally points at a classifier weights artifact.
	// Empty means the built-in weights are used.
	ModelWeightsPath string `koanf:"model_weights_path"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                    "info",
		Addr:                        ":8880",
		CatalogPath:                 "data/products.csv",
		UploadDir:                   "uploads",
		TopN:                        10,
		ConcernThreshold:            0.3,
		SkinTypeEpsilon:             1e-6,
		MinQuality:                  0.2,
		MaxUploadBytes:              8 << 20,
		ReviewTTLSeconds:            3600,
		ReviewTopK:                  2,
		ReviewMaxResults:            3,
		VideoSearchBaseURL:          "",
		SessionIdleTimeoutSeconds:   1800,
		SessionSweepIntervalSeconds: 300,
	}
}
