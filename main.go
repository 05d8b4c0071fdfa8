package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snsworker/config"
	"snsworker/internal/ingest"
	"snsworker/internal/scraper"
	"snsworker/internal/server"
	"snsworker/logger"
	"snsworker/services/cache"
	"snsworker/services/mailer"
	"snsworker/services/store"
	"snsworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("poll_interval", cfg.PollInterval).
		Int("projects", len(cfg.ProjectSheets)).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services := initializeServices(&cfg)
	defer services.Cleanup()

	orchestrator := ingest.NewOrchestrator(
		services.Store,
		services.Scraper,
		services.Dispatcher,
		nil,
		cfg.ScrapeBatchSize,
		cfg.ScrapeBatchDelay,
	)

	// Start the polling worker for configured project sheets
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if len(cfg.ProjectSheets) == 0 {
			log.Info().Msg("No project sheets configured, polling worker idle")
			<-ctx.Done()
			return
		}
		w := worker.NewWorker(orchestrator, cfg.ProjectSheets, cfg.PollInterval, cfg.PollMaxInterval)
		w.Start(ctx)
	}()

	// Start the admin HTTP API
	srv := server.New(orchestrator, services.Store, cfg.SSEHeartbeat, cfg.LongPollTimeout)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}
	httpDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Admin API listening")
		httpDone <- httpServer.ListenAndServe()
	}()

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-httpDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server exited with error")
		}
	}

	// Graceful shutdown: stop the poller, drain the HTTP server
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	<-workerDone

	log.Info().Msg("Shut down gracefully")
}

// Services holds all the initialized services
type Services struct {
	Scraper    *scraper.Scraper
	Store      *store.RedisStore
	Dispatcher *mailer.RedisDispatcher
}

// Cleanup closes the service connections
func (s *Services) Cleanup() {
	if s.Dispatcher != nil {
		s.Dispatcher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices wires the scrape cache, applicant store and mail outbox
func initializeServices(cfg *config.Config) *Services {
	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	return &Services{
		Scraper: scraper.New(cacheService, cfg.BlockTime),
		Store:   store.NewRedisStore(cfg.RedisAddr, cfg.RedisDB),
		Dispatcher: mailer.NewRedisDispatcher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.MailStream,
			cfg.MailStreamCount,
			cfg.MailStreamMaxLength,
		),
	}
}
