package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bcnelson/env-manager/internal/api"
	"github.com/bcnelson/env-manager/internal/config"
	"github.com/bcnelson/env-manager/internal/envstore"
	"github.com/bcnelson/env-manager/internal/logger"
	"github.com/bcnelson/env-manager/internal/permission"
	"github.com/bcnelson/env-manager/internal/service"
	"github.com/bcnelson/env-manager/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("env-manager", logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	// Initialize the live environment backend
	backend, err := envstore.Open(cfg.Environment.Backend, cfg.Environment.File, log)
	if err != nil {
		return fmt.Errorf("opening environment backend: %w", err)
	}
	_, isFile := backend.(*envstore.File)
	if isFile {
		log.Info("using file environment backend", "path", cfg.Environment.File)
	}

	// Privilege is probed once for the lifetime of the process
	var checker permission.PrivilegeChecker = envstore.ProcessPrivilege{}
	if isFile && cfg.Environment.AssumeAdmin {
		checker = envstore.StaticPrivilege(true)
	}
	gate, err := permission.Detect(context.Background(), checker)
	if err != nil {
		return err
	}
	log.Info("privilege detected", "admin", gate.IsAdmin())

	varService := service.NewVariableService(backend, store, gate, log)
	switchService := service.NewSwitchService(store, varService, log)

	if !cfg.AuthEnabled() {
		log.Warn("API_TOKEN is not set; the API accepts unauthenticated requests")
	}
	router := api.NewRouter(store, varService, switchService, cfg.Auth.APIToken, log)

	ln, err := listen(cfg.Server, log)
	if err != nil {
		return err
	}

	// Create HTTP server
	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	log.Info("starting env-manager", "url", "http://"+ln.Addr().String())

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// listen binds the configured port, moving on to the following ports when
// it is already taken.
func listen(cfg config.ServerConfig, log *slog.Logger) (net.Listener, error) {
	var lastErr error
	for port := cfg.Port; port <= cfg.Port+cfg.PortScan && port <= 65535; port++ {
		ln, err := net.Listen("tcp", cfg.AddrAt(port))
		if err == nil {
			return ln, nil
		}
		log.Warn("port unavailable", "port", port, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("no free port in %d-%d: %w", cfg.Port, cfg.Port+cfg.PortScan, lastErr)
}
