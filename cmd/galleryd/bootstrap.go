package main

import (
	"log/slog"
	"net/http"

	"gallery/internal/backend"
	"gallery/internal/cache"
	"gallery/internal/config"
	"gallery/internal/logging"
	"gallery/internal/proxy"
)

// buildHandler wires the backend client and page cache into the proxy. The
// returned func closes the cache connection.
func buildHandler(cfg *config.Config, logger *slog.Logger) (http.Handler, func()) {
	client := backend.NewFromConfig(cfg, logger)
	pages := cache.New(cfg, logger)
	server := proxy.New(cfg, client, pages, logger)
	return server.Handler(), func() {
		if err := pages.Close(); err != nil {
			logger.Warn("close page cache", logging.Error(err))
		}
	}
}
