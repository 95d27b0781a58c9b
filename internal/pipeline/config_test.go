package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "docs/Price.csv", cfg.CSVPath)
	assert.Equal(t, "data", cfg.OutDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Nil(t, cfg.PopularProviders)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `csv_path: /tmp/source.csv
out_dir: /tmp/out
log_level: debug
popular_providers:
  - brightdata
  - soax
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/source.csv", cfg.CSVPath)
	assert.Equal(t, "/tmp/out", cfg.OutDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"brightdata", "soax"}, cfg.PopularProviders)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PROXYPRICE_CSV_PATH", "/env/source.csv")
	t.Setenv("PROXYPRICE_OUT_DIR", "/env/out")
	t.Setenv("PROXYPRICE_LOG_LEVEL", "warn")
	t.Setenv("PROXYPRICE_POPULAR_PROVIDERS", "oxylabs, soax ,")

	cfg, err := LoadConfig("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "/env/source.csv", cfg.CSVPath)
	assert.Equal(t, "/env/out", cfg.OutDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"oxylabs", "soax"}, cfg.PopularProviders)
}

func TestLoadConfigInvalidLogLevelKeepsPrevious(t *testing.T) {
	t.Setenv("PROXYPRICE_LOG_LEVEL", "verbose")

	cfg, err := LoadConfig("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigEmptyPopularListKeepsPrevious(t *testing.T) {
	t.Setenv("PROXYPRICE_POPULAR_PROVIDERS", " , ,")

	cfg, err := LoadConfig("", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, cfg.PopularProviders)
}

func TestLoadConfigRejectsEmptyPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("csv_path: \"\"\n"), 0o644))

	_, err := LoadConfig(path, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop())
	assert.Error(t, err)
}
