// Package config loads trackmatch settings. Values are layered: built-in
// defaults, then the TOML file, then a .env file, then process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const configRelPath = "trackmatch/config.toml"

// Database holds the SQLite location.
type Database struct {
	Path string `toml:"path"`
}

// Inventory configures the remote inventory service. An empty URL means the
// local SQLite catalog serves both the catalog and legacy search.
type Inventory struct {
	URL               string  `toml:"url"`
	Token             string  `toml:"token"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Matching holds defaults for import runs.
type Matching struct {
	Mode          string `toml:"mode"`
	Workers       int    `toml:"workers"`
	LegacyLimit   int    `toml:"legacy_limit"`
	LegacyEnabled bool   `toml:"legacy_enabled"`
}

type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type Server struct {
	Addr string `toml:"addr"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
type Config struct {
	Database  Database  `toml:"database"`
	Inventory Inventory `toml:"inventory"`
	Matching  Matching  `toml:"matching"`
	Spotify   Spotify   `toml:"spotify"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{
			Path: filepath.Join(xdg.DataHome, "trackmatch", "trackmatch.db"),
		},
		Inventory: Inventory{
			RequestsPerSecond: 1.5,
			TimeoutSeconds:    30,
		},
		Matching: Matching{
			Mode:          "balanced",
			Workers:       1,
			LegacyLimit:   25,
			LegacyEnabled: true,
		},
		Server: Server{
			Addr: ":8080",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// DefaultConfigPath returns the XDG config file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, configRelPath)
}

// Load reads the config file at path, or the XDG default when path is empty,
// applies .env and environment overrides, and validates the result. A missing
// file is not an error. The resolved path is returned alongside.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	// .env only fills variables the environment does not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, "", err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		found, err := xdg.SearchConfigFile(configRelPath)
		if err != nil {
			return DefaultConfigPath(), false, nil
		}
		return found, true, nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", path)
	}
	return path, true, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("TRACKMATCH_DB", &c.Database.Path)
	setString("TRACKMATCH_INVENTORY_URL", &c.Inventory.URL)
	setString("TRACKMATCH_INVENTORY_TOKEN", &c.Inventory.Token)
	setString("TRACKMATCH_MODE", &c.Matching.Mode)
	setString("TRACKMATCH_LOG_LEVEL", &c.Logging.Level)
	setString("TRACKMATCH_LOG_FORMAT", &c.Logging.Format)
	setString("SPOTIFY_ID", &c.Spotify.ClientID)
	setString("SPOTIFY_SECRET", &c.Spotify.ClientSecret)

	if v, ok := os.LookupEnv("TRACKMATCH_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRACKMATCH_WORKERS: %w", err)
		}
		c.Matching.Workers = n
	}
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	return nil
}

func (c *Config) normalize() {
	c.Matching.Mode = strings.ToLower(strings.TrimSpace(c.Matching.Mode))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Inventory.URL = strings.TrimRight(strings.TrimSpace(c.Inventory.URL), "/")
	if strings.HasPrefix(c.Database.Path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Database.Path = filepath.Join(home, c.Database.Path[2:])
		}
	}
}

// InventoryTimeout returns the inventory request timeout.
func (c *Config) InventoryTimeout() time.Duration {
	return time.Duration(c.Inventory.TimeoutSeconds) * time.Second
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
