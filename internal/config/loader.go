package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DERMA_CONFIG is set
//  3. env (prefix DERMA_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("DERMA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: DERMA_ADDR, DERMA_TOP_N, ...
	// Map env keys like DERMA_TOP_N -> top_n (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("DERMA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "derma_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.TopN < 1:
		return fmt.Errorf("%w: top_n must be positive", ErrInvalidConfig)
	case cfg.ConcernThreshold < 0 || cfg.ConcernThreshold > 1:
		return fmt.Errorf("%w: concern_threshold must be within [0,1]", ErrInvalidConfig)
	case cfg.MinQuality < 0 || cfg.MinQuality > 1:
		return fmt.Errorf("%w: min_quality must be within [0,1]", ErrInvalidConfig)
	case cfg.ReviewTTLSeconds < 1:
		return fmt.Errorf("%w: review_ttl_seconds must be positive", ErrInvalidConfig)
	case cfg.ReviewTopK < 1:
		return fmt.Errorf("%w: review_top_k must be positive", ErrInvalidConfig)
	case cfg.SessionIdleTimeoutSeconds < 1:
		return fmt.Errorf("%w: session_idle_timeout_seconds must be positive", ErrInvalidConfig)
	case cfg.MaxUploadBytes < 1:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
