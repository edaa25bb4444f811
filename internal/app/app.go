// Package app provides the unified application lifecycle for the catalog
// service: it wires storage, the catalog store, the ingestion pipeline, the
// event log, the archive daemon, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	httpapi "github.com/cpcatalog/cpcatalog/internal/api/http"
	"github.com/cpcatalog/cpcatalog/internal/archive"
	"github.com/cpcatalog/cpcatalog/internal/auth"
	"github.com/cpcatalog/cpcatalog/internal/bloom"
	"github.com/cpcatalog/cpcatalog/internal/catalog"
	"github.com/cpcatalog/cpcatalog/internal/config"
	"github.com/cpcatalog/cpcatalog/internal/eventlog"
	"github.com/cpcatalog/cpcatalog/internal/ingest"
	"github.com/cpcatalog/cpcatalog/internal/observability"
	"github.com/cpcatalog/cpcatalog/internal/server"
	"github.com/cpcatalog/cpcatalog/internal/storage"
)

// App manages the catalog service lifecycle.
type App struct {
	cfg *config.Config

	// Shared resources
	objects  storage.ObjectStorage
	store    *catalog.SQLiteStore
	pipeline *ingest.Pipeline
	events   *eventlog.Log
	archiver *archive.Archiver
	stats    *observability.Stats
	shutdown *server.ShutdownManager

	httpServer *http.Server

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{cfg: cfg}, nil
}

// Start initializes shared resources and starts the service.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if err := a.startHTTPServer(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if a.cfg.Archive.Enabled {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.archiver.Run(ctx)
		}()
	}

	log.Printf("cpcatalog started on %s", a.cfg.HTTP.Addr)
	return nil
}

// initSharedResources initializes storage, the catalog store, and the
// pipeline components.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.objects, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.objects, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Printf("app: storage initialized: type=%s", a.cfg.Storage.Type)

	a.store, err = catalog.NewStore(a.cfg.CatalogPath())
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	log.Printf("app: catalog store opened: %s", a.cfg.CatalogPath())

	filter := bloom.NewWithEstimates(
		a.cfg.Ingest.BloomExpectedItems,
		a.cfg.Ingest.BloomFalsePositiveRate,
	)
	a.pipeline = ingest.New(a.store, filter, ingest.WithBatchSize(a.cfg.Ingest.BatchSize))
	a.events = eventlog.New(a.store)
	a.stats = observability.NewStats()
	a.archiver = archive.New(a.store, a.objects,
		archive.WithBatchSize(a.cfg.Archive.BatchSize),
		archive.WithInterval(a.cfg.Archive.Interval),
		archive.WithPrefix(a.cfg.Archive.Prefix),
	)

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.RegisterCloser(a.store)

	return nil
}

// startHTTPServer mounts the API routes and starts serving.
func (a *App) startHTTPServer() error {
	var authorizer auth.Authorizer = auth.AllowAll{}
	if a.cfg.Auth.Enabled {
		authorizer = auth.NewStaticTokenAuthorizer(a.cfg.Auth.Tokens)
		log.Printf("app: token auth enabled (%d tokens)", len(a.cfg.Auth.Tokens))
	}

	handlers := httpapi.NewHandlers(a.pipeline, a.events, a.stats)

	mux := http.NewServeMux()
	chain := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.ContentTypeMiddleware,
		httpapi.AuthMiddleware(authorizer),
	)
	handlers.Register(mux, chain)

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("app: HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("app: HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the service and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("app: initiating graceful shutdown")

	if a.cancel != nil {
		a.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("app: HTTP server shutdown error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("app: shutdown timeout, some goroutines may not have finished")
	}

	// One final drain so no captured events are stranded in a crash-prone
	// window between the last tick and process exit.
	if a.cfg.Archive.Enabled && a.archiver != nil {
		if n, err := a.archiver.ArchiveAll(context.Background()); err != nil {
			log.Printf("app: final archive sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("app: final archive sweep archived %d events", n)
		}
	}

	a.cleanup()

	log.Printf("cpcatalog stopped")
	return nil
}

// cleanup releases all shared resources.
func (a *App) cleanup() {
	if a.store != nil {
		a.store.Close()
	}
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
