package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/config"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromViper(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Scraper.MaxDownloads)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 1, cfg.Fetch.MaxAttempts)
	assert.Equal(t, config.DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, []string{"sql", "python", "postgres", "postgresql"}, cfg.Scraper.RequiredKeywords)
	assert.Equal(t, []string{".pdf"}, cfg.Filter.Extensions)
	assert.Equal(t, 8192, cfg.Download.ChunkSize)
	assert.Equal(t, "downloaded_documents_list.txt", cfg.Report.ManifestFile)
	assert.False(t, cfg.Filter.RelaxedDirect)
	assert.False(t, cfg.Fetch.RespectRobotsTxt)
	assert.Len(t, cfg.Sources.Search, 3)
	assert.Len(t, cfg.Sources.Direct, 1)
}

func TestFromViper_FileOverrides(t *testing.T) {
	t.Parallel()

	v := newViper(t, `
scraper:
  output_dir: /tmp/out
  max_downloads: 5
  required_keywords: [SQL, " Rust "]
fetch:
  timeout: 3s
filter:
  relaxed_direct: true
sources:
  search:
    - name: only
      base_url: https://only.test/
      templates: ["?q={keyword}"]
`)

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", cfg.Scraper.OutputDir)
	assert.Equal(t, 5, cfg.Scraper.MaxDownloads)
	assert.Equal(t, []string{"sql", "rust"}, cfg.Scraper.RequiredKeywords)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.True(t, cfg.Filter.RelaxedDirect)
	require.Len(t, cfg.Sources.Search, 1)
	assert.Empty(t, cfg.Sources.Direct)
}

func TestFromViper_CommaSeparatedOverride(t *testing.T) {
	t.Parallel()

	v := newViper(t, "")
	v.Set("scraper.search_keywords", "go,rust")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, cfg.Scraper.SearchKeywords)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	v := newViper(t, "")
	v.Set("scraper.max_downloads", 0)
	v.Set("download.extension", "pdf")
	v.Set("schedule.cron", "not a schedule")
	v.Set("tables.format", "ods")

	_, err := config.FromViper(v)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrConfigInvalid)

	for _, field := range []string{"scraper.max_downloads", "download.extension", "schedule.cron", "tables.format"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestValidate_RejectsBadSources(t *testing.T) {
	t.Parallel()

	v := newViper(t, `
sources:
  direct:
    - name: broken
      url: ftp://files.test/
`)

	_, err := config.FromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources")
}
