package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDashboards() []Dashboard {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Dashboard{{
		ID:        "d1",
		Title:     "Security Overview",
		CreatedAt: ts,
		UpdatedAt: ts,
		IsPrimary: true,
		Widgets: []Widget{{
			ID:       "w1",
			Type:     WidgetTypeGauge,
			Title:    "Risk Score",
			Position: Position{I: "w1", W: 4, H: 3},
			Config:   WidgetConfig{Options: GaugeOptions{}},
			DataSourceConfig: &DataSource{
				Type:            DataSourceMock,
				RefreshInterval: 5000,
			},
		}},
	}}
}

func TestFileDashboardRepository(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileDashboardRepository(dir, "web3-dashboards")
	ctx := context.Background()

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, repo.Save(ctx, sampleDashboards()))

	_, err = os.Stat(filepath.Join(dir, "web3-dashboards.json"))
	require.NoError(t, err)

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDashboards(), loaded)

	require.NoError(t, repo.Save(ctx, nil))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Dashboard{}, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileDashboardRepositoryCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "web3-dashboards.json"), []byte("{not json"), 0o644))

	repo := NewFileDashboardRepository(dir, "web3-dashboards")
	_, err := repo.Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryDashboardRepository(t *testing.T) {
	repo := NewMemoryDashboardRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleDashboards()))
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDashboards(), loaded)
	assert.Contains(t, string(repo.Raw()), `"title":"Security Overview"`)
}

func TestNewDashboardRepository(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		want    string
		wantErr bool
	}{
		{"Default File", "", config.StorageDriverFile, false},
		{"File", config.StorageDriverFile, config.StorageDriverFile, false},
		{"Memory", config.StorageDriverMemory, config.StorageDriverMemory, false},
		{"Mongo Without Connection", config.StorageDriverMongo, "", true},
		{"Unknown", "redis", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{StorageDriver: tt.driver, StoragePath: t.TempDir(), StorageKey: "k"}
			repo, err := NewDashboardRepository(cfg, &database.MongodbDB{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.Driver())
		})
	}
}
