package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoSettingsFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPPort, cfg.HTTPPort)
	assert.Equal(t, DefaultEmbeddingModel, cfg.EmbeddingModel)
	assert.Equal(t, DefaultRerankPoolSize, cfg.RerankPoolSize)
	assert.Equal(t, DefaultWeights(), cfg.Weights)
}

func TestLoad_SettingsFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: 9999
embedding_model: custom-model
weights:
  style: 0.7
  price: 0.1
  varietal: 0.1
  region: 0.05
  recency_bump: 0.05
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.HTTPPort)
	assert.Equal(t, "custom-model", cfg.EmbeddingModel)
	assert.InDelta(t, 0.7, cfg.Weights.Style, 1e-9)
}

func TestLoad_EnvOverridesSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: 9999\n"), 0o644))

	t.Setenv("SOMMELIER_HTTP_PORT", "7777")
	t.Setenv("SOMMELIER_EMBEDDING_API_KEY", "from-env")
	t.Setenv("SOMMELIER_REQUEST_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.HTTPPort)
	assert.Equal(t, "from-env", cfg.EmbeddingAPIKey)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoad_RejectsBadPipelineShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rerank_pool_size: 10\nrerank_max_picks: 24\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rerank_pool_size")
}

func TestLoad_RejectsOversizedSearchLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search_limit: 100\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_TTLHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*24*time.Hour, cfg.EmbeddingTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RecommendationTTL())
}
