package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	PreviewDir string `toml:"preview_dir"`
}

// Server contains configuration for the proxy daemon.
type Server struct {
	Bind               string   `toml:"bind"`
	RoutePrefix        string   `toml:"route_prefix"`
	AllowedOrigins     []string `toml:"allowed_origins"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	GinMode            string   `toml:"gin_mode"`
}

// Backend contains connection settings for the search backend.
type Backend struct {
	URL            string `toml:"url"`
	SimilarPath    string `toml:"similar_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Upload contains configuration for the batch upload pipeline.
type Upload struct {
	// Endpoint is the ingest base URL used by the CLI. Usually the proxy
	// daemon; may point straight at the backend.
	Endpoint              string `toml:"endpoint"`
	BatchSize             int    `toml:"batch_size"`
	BatchDelayMS          int    `toml:"batch_delay_ms"`
	CompletionGraceMS     int    `toml:"completion_grace_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	PreviewWidth          int    `toml:"preview_width"`
	Remember              bool   `toml:"remember"`
}

// Exif contains metadata extraction settings.
type Exif struct {
	UseExiftool bool `toml:"use_exiftool"`
}

// Cache contains configuration for the gallery page cache.
type Cache struct {
	RedisAddr        string `toml:"redis_addr"`
	RedisPassword    string `toml:"redis_password"`
	RedisDB          int    `toml:"redis_db"`
	GalleryTTLSecond int    `toml:"gallery_ttl_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Upload         bool   `toml:"upload"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for the gallery tools.
//
// Configuration sections by subsystem:
//   - Paths: data, log and preview directories
//   - Server: proxy bind address, route prefix, CORS and rate limits
//   - Backend: search backend location and timeouts
//   - Upload: batch size, pacing and timeouts for the upload pipeline
//   - Exif: metadata extraction backends
//   - Cache: Redis gallery page cache
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Backend       Backend       `toml:"backend"`
	Upload        Upload        `toml:"upload"`
	Exif          Exif          `toml:"exif"`
	Cache         Cache         `toml:"cache"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gallery.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log and preview directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.PreviewDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the local key-value database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "gallery.db")
}

// LockPath returns the location of the proxy daemon's single-instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "galleryd.lock")
}

// BatchDelay returns the pause inserted before every upload batch after the first.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Upload.BatchDelayMS) * time.Millisecond
}

// CompletionGrace returns the pause between signalling completion and closing the session.
func (c *Config) CompletionGrace() time.Duration {
	return time.Duration(c.Upload.CompletionGraceMS) * time.Millisecond
}

// UploadTimeout returns the per-item ingest request timeout.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Upload.RequestTimeoutSeconds) * time.Second
}

// BackendTimeout returns the timeout for backend query requests.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// GalleryTTL returns how long cached gallery pages remain valid.
func (c *Config) GalleryTTL() time.Duration {
	return time.Duration(c.Cache.GalleryTTLSecond) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultPreviewDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "gallery", "previews")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/gallery/previews"
	}
	return filepath.Join(home, ".cache", "gallery", "previews")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
