package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gallery/internal/config"
	"gallery/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Daemon serves the proxy and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	running  atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	BackendURL   string
	LockFilePath string
	DatabasePath string
}

// New constructs a daemon serving handler.
func New(cfg *config.Config, handler http.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || handler == nil {
		return nil, errors.New("daemon requires config and handler")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       2 * time.Minute,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start acquires the instance lock and begins serving. It returns once the
// listener is bound; serving stops when ctx ends or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another galleryd instance is already running")
	}

	listener, err := net.Listen("tcp", d.cfg.Server.Bind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("listen on %s: %w", d.cfg.Server.Bind, err)
	}
	d.listener = listener
	d.done = make(chan struct{})
	d.running.Store(true)

	go d.serve(listener, d.done)
	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-done:
		}
	}(d.done)

	d.logger.Info("galleryd started",
		logging.String("address", listener.Addr().String()),
		logging.String("backend", d.cfg.Backend.URL),
		logging.String("route_prefix", d.cfg.Server.RoutePrefix),
		logging.String("lock", d.lockPath),
	)
	return nil
}

func (d *Daemon) serve(listener net.Listener, done chan struct{}) {
	defer close(done)
	if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.ErrorWithContext(d.logger, "http server error", "server_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check server.bind and restart galleryd"),
		)
	}
}

// Stop shuts the server down and releases the lock. It is safe to call more
// than once. A stopped Daemon cannot be started again.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("graceful shutdown incomplete", logging.Error(err))
		_ = d.server.Close()
	}
	if d.done != nil {
		<-d.done
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("galleryd stopped")
}

// Done is closed when the server stops serving.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Addr returns the bound listener address, or "" before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.Addr(),
		BackendURL:   d.cfg.Backend.URL,
		LockFilePath: d.lockPath,
		DatabasePath: d.cfg.DatabasePath(),
	}
}
