package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRACKMATCH_DB", "TRACKMATCH_INVENTORY_URL", "TRACKMATCH_INVENTORY_TOKEN",
		"TRACKMATCH_MODE", "TRACKMATCH_LOG_LEVEL", "TRACKMATCH_LOG_FORMAT",
		"TRACKMATCH_WORKERS", "SPOTIFY_ID", "SPOTIFY_SECRET", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	def := Default()
	assert.Equal(t, def.Database.Path, cfg.Database.Path)
	assert.Equal(t, "balanced", cfg.Matching.Mode)
	assert.Equal(t, 1, cfg.Matching.Workers)
	assert.True(t, cfg.Matching.LegacyEnabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.SpotifyEnabled())
	assert.Empty(t, cfg.Inventory.URL)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[database]
path = "/var/lib/trackmatch/shop.db"

[inventory]
url = "https://inventory.example.com/api/"
token = "secret"
timeout_seconds = 5

[matching]
mode = "Strict"
workers = 4
legacy_enabled = false

[logging]
level = "DEBUG"
format = "json"
`)

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/trackmatch/shop.db", cfg.Database.Path)
	assert.Equal(t, "https://inventory.example.com/api", cfg.Inventory.URL)
	assert.Equal(t, "secret", cfg.Inventory.Token)
	assert.Equal(t, 1.5, cfg.Inventory.RequestsPerSecond, "unset keys keep defaults")
	assert.Equal(t, "5s", cfg.InventoryTimeout().String())
	assert.Equal(t, "strict", cfg.Matching.Mode)
	assert.Equal(t, 4, cfg.Matching.Workers)
	assert.Equal(t, 25, cfg.Matching.LegacyLimit)
	assert.False(t, cfg.Matching.LegacyEnabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[matching]\nmode = \"strict\"\n")
	t.Setenv("TRACKMATCH_MODE", "aggressive")
	t.Setenv("TRACKMATCH_DB", "/tmp/override.db")
	t.Setenv("TRACKMATCH_WORKERS", "8")
	t.Setenv("SPOTIFY_ID", "id")
	t.Setenv("SPOTIFY_SECRET", "secret")
	t.Setenv("PORT", "9090")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "aggressive", cfg.Matching.Mode)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.Matching.Workers)
	assert.True(t, cfg.SpotifyEnabled())
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown mode", body: "[matching]\nmode = \"reckless\"\n"},
		{name: "zero workers", body: "[matching]\nworkers = 0\n"},
		{name: "relative inventory url", body: "[inventory]\nurl = \"inventory.local\"\n"},
		{name: "bad log format", body: "[logging]\nformat = \"xml\"\n"},
		{name: "malformed toml", body: "[matching\n"},
		{name: "bad workers env", env: map[string]string{"TRACKMATCH_WORKERS": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsDirectory(t *testing.T) {
	clearEnv(t)
	_, _, err := Load(t.TempDir())
	assert.Error(t, err)
}
