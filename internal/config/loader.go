package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SCRAPE_YEAR, DATABASE_URL, VECTORSTORE_PATH, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables map to YAML keys by splitting on the first underscore:
//
//	SCRAPE_BASE_URL        -> scrape.base_url
//	PIPELINE_CHUNK_SIZE    -> pipeline.chunk_size
//	EMBEDDINGS_MODEL       -> embeddings.model
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	// Only known sections are mapped so unrelated environment variables
	// (PATH, HOME, ...) do not leak into the config tree.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) != 2 {
			return ""
		}
		switch parts[0] {
		case "scrape", "database", "vectorstore", "embeddings", "pipeline", "server", "logging":
			return parts[0] + "." + parts[1]
		}
		return ""
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
