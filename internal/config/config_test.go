package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldstrat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Nil(t, cfg.DefaultCloudMax)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
metadata_path: /data/worldstrat/metadata.csv
split_path: /data/worldstrat/stratified_train_val_test_split.csv
hr_base: /data/worldstrat/hr_dataset
default_cloud_max: 30
map_zoom: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/worldstrat/metadata.csv", cfg.MetadataPath)
	assert.Equal(t, "/data/worldstrat/stratified_train_val_test_split.csv", cfg.SplitPath)
	assert.Equal(t, "/data/worldstrat/hr_dataset", cfg.HRBase)
	assert.Equal(t, "lr_dataset", cfg.LRBase)
	require.NotNil(t, cfg.DefaultCloudMax)
	assert.Equal(t, 30.0, *cfg.DefaultCloudMax)
	assert.Equal(t, 4.0, cfg.MapZoom)
	assert.Equal(t, Default().CacheEntries, cfg.CacheEntries)
	assert.Equal(t, Default().ThumbSize, cfg.ThumbSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "bad yaml", body: "metadata_path: [", want: "parsing config YAML"},
		{name: "cloud above range", body: "default_cloud_max: 150", want: "default_cloud_max"},
		{name: "negative zoom", body: "map_zoom: -1", want: "map_zoom"},
		{name: "negative cache", body: "cache_entries: -3", want: "cache_entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cloud := 42.0
	cfg := Default()
	cfg.DefaultCloudMax = &cloud
	cfg.SplitPath = "split.csv"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
