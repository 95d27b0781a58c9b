package pipeline

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config controls one pipeline run. Values come from defaults, then an
// optional YAML file, then PROXYPRICE_* environment overrides, in that
// order.
type Config struct {
	// CSVPath is the raw source table.
	CSVPath string `yaml:"csv_path"`
	// OutDir receives providers.json, pricing.json and calculator.json.
	OutDir string `yaml:"out_dir"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// PopularProviders is the editorial tie-break allow-list handed to
	// the recommendation engine.
	PopularProviders []string `yaml:"popular_providers"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		CSVPath:  "docs/Price.csv",
		OutDir:   "data",
		LogLevel: "info",
	}
}

// LoadConfig layers the YAML file at path (when non-empty) and the
// environment over the defaults. Invalid environment values warn and
// keep the previous setting rather than aborting the run.
func LoadConfig(path string, logger zerolog.Logger) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, logger)

	if cfg.CSVPath == "" {
		return Config{}, fmt.Errorf("csv_path must not be empty")
	}
	if cfg.OutDir == "" {
		return Config{}, fmt.Errorf("out_dir must not be empty")
	}
	return cfg, nil
}

func applyEnv(cfg *Config, logger zerolog.Logger) {
	if v := os.Getenv("PROXYPRICE_CSV_PATH"); v != "" {
		cfg.CSVPath = v
	}
	if v := os.Getenv("PROXYPRICE_OUT_DIR"); v != "" {
		cfg.OutDir = v
	}
	if v := os.Getenv("PROXYPRICE_LOG_LEVEL"); v != "" {
		if _, err := zerolog.ParseLevel(v); err != nil {
			logger.Warn().Str("value", v).Msg("invalid PROXYPRICE_LOG_LEVEL, keeping previous")
		} else {
			cfg.LogLevel = v
		}
	}
	if v := os.Getenv("PROXYPRICE_POPULAR_PROVIDERS"); v != "" {
		var ids []string
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			logger.Warn().Str("value", v).Msg("PROXYPRICE_POPULAR_PROVIDERS has no usable entries, keeping previous")
		} else {
			cfg.PopularProviders = ids
		}
	}
}
