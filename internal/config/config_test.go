package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverFile, cfg.StorageDriver)
	assert.Equal(t, "web3-dashboards", cfg.StorageKey)
	assert.Equal(t, 60, cfg.RowHeight)
	assert.False(t, cfg.MongoEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("RENDER_ROW_HEIGHT", "80")
	t.Setenv("API_TIMEOUT", "2s")
	t.Setenv("DEFAULT_REFRESH_INTERVAL", "not-a-duration")
	t.Setenv("SKIP_AUTH", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.MongoEnabled())
	assert.True(t, cfg.SkipAuth)
	assert.Equal(t, 80, cfg.RowHeight)
	assert.Equal(t, 2*time.Second, cfg.APITimeout)
	assert.Equal(t, 5*time.Second, cfg.DefaultRefreshInterval)
}
