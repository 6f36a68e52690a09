package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"gallery/internal/config"
	"gallery/internal/daemon"
	"gallery/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	handler, closeCache := buildHandler(cfg, logger)
	defer closeCache()

	d, err := daemon.New(cfg, handler, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}
	status := d.Status()
	logger.Info("galleryd listening",
		logging.String("address", status.Address),
		logging.String("backend", status.BackendURL),
	)

	<-d.Done()
	d.Stop()
	logger.Info("galleryd shutting down")
}
