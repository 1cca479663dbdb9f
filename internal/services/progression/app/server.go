// Package app wires the progression engine's dependencies and runs its
// HTTP server until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/evergrind/evergrind/internal/platform/timeouts"
	progressionhttp "github.com/evergrind/evergrind/internal/services/progression/api/http"
	"github.com/evergrind/evergrind/internal/services/progression/content"
	"github.com/evergrind/evergrind/internal/services/progression/domain"
	"github.com/evergrind/evergrind/internal/services/progression/notify"
	"github.com/evergrind/evergrind/internal/services/progression/storage/sqlite"
)

// Config controls progression runtime startup and dependency wiring.
type Config struct {
	Addr          string
	DBPath        string
	ContentPath   string
	NotifyTimeout time.Duration
}

// Run starts the progression HTTP runtime until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return fmt.Errorf("database path is required")
	}

	catalog, err := loadCatalog(cfg.ContentPath)
	if err != nil {
		return fmt.Errorf("load content catalog: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close store: %v", closeErr)
		}
	}()

	dispatcher := notify.NewDispatcher(notify.LogNotifier{}, cfg.NotifyTimeout)
	service := domain.NewService(store, catalog, dispatcher, nil, nil)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           progressionhttp.NewServer(service).Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	log.Printf("progression server listening at %s", cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func loadCatalog(path string) (content.Bundle, error) {
	if strings.TrimSpace(path) == "" {
		return content.Default()
	}
	return content.Load(path)
}
