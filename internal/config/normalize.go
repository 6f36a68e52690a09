package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeBackend()
	c.normalizeUpload()
	c.normalizeCache()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PreviewDir) == "" {
		c.Paths.PreviewDir = defaultPreviewDir()
	}
	if c.Paths.PreviewDir, err = expandPath(c.Paths.PreviewDir); err != nil {
		return fmt.Errorf("paths.preview_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	prefix := strings.TrimSpace(c.Server.RoutePrefix)
	if prefix != "" {
		prefix = "/" + strings.Trim(prefix, "/")
		if prefix == "/" {
			prefix = ""
		}
	}
	c.Server.RoutePrefix = prefix
	origins := c.Server.AllowedOrigins[:0]
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
	c.Server.GinMode = strings.ToLower(strings.TrimSpace(c.Server.GinMode))
	if c.Server.GinMode == "" {
		c.Server.GinMode = defaultGinMode
	}
}

func (c *Config) normalizeBackend() {
	c.Backend.URL = strings.TrimSpace(c.Backend.URL)
	if c.Backend.URL == "" {
		if value, ok := os.LookupEnv("BACKEND_URL"); ok {
			c.Backend.URL = strings.TrimSpace(value)
		}
	}
	if c.Backend.URL == "" {
		c.Backend.URL = defaultBackendURL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	c.Backend.SimilarPath = strings.TrimSpace(c.Backend.SimilarPath)
	if c.Backend.SimilarPath == "" {
		c.Backend.SimilarPath = defaultSimilarPath
	}
	if !strings.HasPrefix(c.Backend.SimilarPath, "/") {
		c.Backend.SimilarPath = "/" + c.Backend.SimilarPath
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)
	if c.Upload.Endpoint == "" {
		if value, ok := os.LookupEnv("GALLERY_UPLOAD_ENDPOINT"); ok {
			c.Upload.Endpoint = strings.TrimSpace(value)
		}
	}
	if c.Upload.Endpoint == "" {
		c.Upload.Endpoint = defaultUploadEndpoint
	}
	c.Upload.Endpoint = strings.TrimRight(c.Upload.Endpoint, "/")
}

func (c *Config) normalizeCache() {
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	if c.Cache.RedisAddr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			c.Cache.RedisAddr = strings.TrimSpace(value)
		}
	}
	if c.Cache.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			c.Cache.RedisPassword = value
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}
