package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gallery/internal/backend"
	"gallery/internal/config"
	"gallery/internal/credentials"
	"gallery/internal/logging"
	"gallery/internal/store"
)

type commandContext struct {
	configFlag   *string
	endpointFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, endpointFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		endpointFlag: endpointFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// endpoint returns the API base the CLI talks to. The proxy exposes the same
// routes as the backend, so either works.
func (c *commandContext) endpoint() string {
	if c.endpointFlag != nil {
		if value := strings.TrimSpace(*c.endpointFlag); value != "" {
			return strings.TrimRight(value, "/")
		}
	}
	if c.config == nil {
		return ""
	}
	return c.config.Upload.Endpoint
}

// logger writes console logs to the command's stderr and JSON records to the
// configured log file.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
		File:   logging.FileOptionsFromConfig(cfg),
	})
}

func (c *commandContext) client(logger *slog.Logger) (*backend.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	endpoint := c.endpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("no gallery endpoint configured; set upload.endpoint or pass --endpoint")
	}
	return backend.NewClient(endpoint,
		backend.WithTimeout(cfg.UploadTimeout()),
		backend.WithSimilarPath(similarRoute),
		backend.WithLogger(logger),
	), nil
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

func (c *commandContext) withCredentials(fn func(*credentials.Store) error) error {
	return c.withStore(func(st *store.Store) error {
		return fn(credentials.NewStore(st))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func readSecret(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
