// proxyprice-pipeline runs the batch transform: it reads the raw pricing
// CSV, parses and normalizes every offer, validates the assembled
// datasets, and overwrites providers.json, pricing.json and
// calculator.json. It exits non-zero on any failure, leaving previous
// outputs untouched.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/proxyprice/pipeline/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	csvPath := flag.String("csv", "", "Source CSV path (overrides config)")
	outDir := flag.String("out-dir", "", "Output directory (overrides config)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := pipeline.LoadConfig(*configPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if *csvPath != "" {
		cfg.CSVPath = *csvPath
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	if err := pipeline.Run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("pipeline failed")
	}
}
