package testsupport

import (
	"path/filepath"
	"testing"

	"gallery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Upload pacing is zeroed so submitter tests do not sleep.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.PreviewDir = filepath.Join(base, "previews")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.GinMode = "test"
	cfgVal.Backend.URL = "http://127.0.0.1:8000"
	cfgVal.Upload.Endpoint = "http://127.0.0.1:3000/api"
	cfgVal.Upload.BatchDelayMS = 0
	cfgVal.Upload.CompletionGraceMS = 0
	cfgVal.Logging.File = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackendURL points the config at a test backend.
func WithBackendURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.URL = url
	}
}

// WithUploadEndpoint points the upload pipeline at a test server.
func WithUploadEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Endpoint = url
	}
}

// WithBatchSize overrides the upload batch size.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.BatchSize = size
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
