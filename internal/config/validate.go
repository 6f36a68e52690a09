package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.RateLimitPerMinute < 0 {
		return errors.New("server.rate_limit_per_minute must be zero (disabled) or positive")
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode: unsupported value %q", c.Server.GinMode)
	}
	return nil
}

func (c *Config) validateBackend() error {
	if err := validateHTTPURL("backend.url", c.Backend.URL); err != nil {
		return err
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return errors.New("backend.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if err := validateHTTPURL("upload.endpoint", c.Upload.Endpoint); err != nil {
		return err
	}
	if c.Upload.BatchSize <= 0 {
		return errors.New("upload.batch_size must be positive")
	}
	if c.Upload.BatchDelayMS < 0 {
		return errors.New("upload.batch_delay_ms must be zero or positive")
	}
	if c.Upload.CompletionGraceMS < 0 {
		return errors.New("upload.completion_grace_ms must be zero or positive")
	}
	if c.Upload.RequestTimeoutSeconds <= 0 {
		return errors.New("upload.request_timeout_seconds must be positive")
	}
	if c.Upload.PreviewWidth <= 0 {
		return errors.New("upload.preview_width must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.RedisAddr == "" {
		return nil
	}
	if c.Cache.GalleryTTLSecond <= 0 {
		return errors.New("cache.gallery_ttl_seconds must be positive when cache.redis_addr is set")
	}
	if c.Cache.RedisDB < 0 {
		return errors.New("cache.redis_db must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must be zero or positive")
	}
	return nil
}

func validateHTTPURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, value)
	}
	return nil
}
