package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"trackmatch-srv/internal/config"
	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/importer"
	"trackmatch-srv/internal/inventory"
	"trackmatch-srv/internal/logging"
	"trackmatch-srv/internal/matcher"
	"trackmatch-srv/internal/models"
	"trackmatch-srv/internal/parser"
)

// rowSource turns a streaming link into import rows and a display name.
type rowSource interface {
	Parse(ctx context.Context, link string) ([]models.SourceRow, string, error)
}

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) withStore(fn func(*config.Config, *database.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// sources picks the catalog and legacy search backends. A configured
// inventory URL takes precedence over the local catalog tables.
func sources(cfg *config.Config, store *database.Store) (importer.CatalogSource, matcher.LegacySearcher, error) {
	if cfg.Inventory.URL == "" {
		if !cfg.Matching.LegacyEnabled {
			return store, nil, nil
		}
		return store, store, nil
	}

	client, err := inventory.New(inventory.Options{
		BaseURL:           cfg.Inventory.URL,
		Token:             cfg.Inventory.Token,
		RequestsPerSecond: cfg.Inventory.RequestsPerSecond,
		Timeout:           cfg.InventoryTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Matching.LegacyEnabled {
		return client, nil, nil
	}
	return client, client, nil
}

func newImporter(cfg *config.Config, store *database.Store, logger *slog.Logger, progress importer.ProgressFunc) (*importer.Importer, error) {
	catalogSource, legacy, err := sources(cfg, store)
	if err != nil {
		return nil, err
	}
	return importer.New(importer.Options{
		Catalog:     catalogSource,
		Legacy:      legacy,
		Store:       store,
		Recorder:    store,
		Workers:     cfg.Matching.Workers,
		LegacyLimit: cfg.Matching.LegacyLimit,
		Progress:    progress,
		Logger:      logger,
	})
}

// streamingSources builds the Spotify and YouTube row sources. Spotify is
// only available with client credentials.
func streamingSources(ctx context.Context, cfg *config.Config) (map[string]rowSource, error) {
	out := map[string]rowSource{
		"youtube": parser.NewYouTubeParser(nil),
	}
	if cfg.SpotifyEnabled() {
		client, err := parser.NewSpotifyClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("spotify client: %w", err)
		}
		out["spotify"] = parser.NewSpotifyParser(client)
	}
	return out, nil
}
