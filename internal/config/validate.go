package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	if err := c.validateInventory(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateInventory() error {
	if c.Inventory.URL != "" {
		u, err := url.Parse(c.Inventory.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("inventory.url %q is not an absolute URL", c.Inventory.URL)
		}
	}
	if c.Inventory.RequestsPerSecond <= 0 {
		return errors.New("inventory.requests_per_second must be positive")
	}
	if c.Inventory.TimeoutSeconds <= 0 {
		return errors.New("inventory.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	switch c.Matching.Mode {
	case "strict", "balanced", "aggressive":
	default:
		return fmt.Errorf("matching.mode: unsupported value %q", c.Matching.Mode)
	}
	if c.Matching.Workers < 1 {
		return errors.New("matching.workers must be at least 1")
	}
	if c.Matching.LegacyLimit < 1 {
		return errors.New("matching.legacy_limit must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
