package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://www.thegradcafe.com/survey/", cfg.Crawler.BaseURL)
	assert.Equal(t, 1, cfg.Crawler.StartPage)
	assert.Zero(t, cfg.Crawler.PageLimit)
	assert.InDelta(t, 0.90, cfg.Standardizer.FuzzyThreshold, 1e-9)
	assert.Equal(t, 200, cfg.Loader.BatchSize)
	assert.Equal(t, "admissions", cfg.DB.Name)
	assert.Equal(t, time.Second, cfg.FetchDelay())
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
crawler:
  base_url: https://example.org/survey/
  page_limit: 5
  delay_ms: 2500
loader:
  batch_size: 50
db:
  name: admissions_test
  password: hunter2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/survey/", cfg.Crawler.BaseURL)
	assert.Equal(t, 5, cfg.Crawler.PageLimit)
	assert.Equal(t, 2500*time.Millisecond, cfg.FetchDelay())
	assert.Equal(t, 50, cfg.Loader.BatchSize)
	assert.Equal(t, "admissions_test", cfg.DB.Name)
	// Defaults still apply to untouched keys.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"negative page limit": "crawler:\n  page_limit: -1\n",
		"zero batch size":     "loader:\n  batch_size: 0\n",
		"bad threshold":       "standardizer:\n  fuzzy_threshold: 1.5\n",
		"missing base url":    "crawler:\n  base_url: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
