// Package main is the entry point for the plan sync server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plan-sync/backend/internal/api"
	"github.com/plan-sync/backend/internal/api/handlers"
	"github.com/plan-sync/backend/internal/calendar"
	"github.com/plan-sync/backend/internal/config"
	"github.com/plan-sync/backend/internal/logger"
	"github.com/plan-sync/backend/internal/planner"
	"github.com/plan-sync/backend/internal/planning"
	"github.com/plan-sync/backend/internal/provider"
	"github.com/plan-sync/backend/internal/storage"
	"github.com/plan-sync/backend/internal/token"
	"github.com/plan-sync/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	addr := flag.String("addr", "", "HTTP server address (overrides PLANSYNC_HTTP_ADDR)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides PLANSYNC_DATA_DIR)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.HTTPAddr); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	logger.New("plan-sync", logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log.Info().Str("version", version).Msg("starting plan sync server")

	if err := run(cfg); err != nil {
		log.Fatal().Stack().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBDriver, cfg.DataDir, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info().Str("driver", db.Driver()).Msg("database migrations complete")

	hub := websocket.NewHub()
	go hub.Run(ctx)
	broadcaster := websocket.NewEventBroadcaster(hub)

	// Repositories
	credentialRepo := storage.NewCredentialRepository(db)
	taskRepo := storage.NewTaskRepository(db)
	preferenceRepo := storage.NewPreferenceRepository(db)
	syncRunRepo := storage.NewSyncRunRepository(db)

	graph := provider.NewGraphClient(provider.Config{
		BaseURL:      cfg.GraphBaseURL,
		Tenant:       cfg.GraphTenant,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		RedirectURL:  cfg.GraphRedirectURL,
		Scopes:       cfg.GraphScopes,
		Timeout:      cfg.ProviderTimeout,
	})

	tokens := token.NewManager(graph, credentialRepo)

	generator := planner.NewLLMGenerator(planner.Config{
		BaseURL: cfg.PlannerBaseURL,
		Model:   cfg.PlannerModel,
		APIKey:  cfg.PlannerAPIKey,
		Timeout: cfg.PlannerTimeout,
	})

	syncService := calendar.NewSyncService(graph, tokens, broadcaster)
	planService := planning.NewService(taskRepo, preferenceRepo, credentialRepo, generator, syncService,
		planning.WithRunRecorder(syncRunRepo),
	)

	scheduler := calendar.NewScheduler(tokens, cfg.SweepInterval())
	if err := scheduler.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to start token refresh scheduler")
	}
	defer scheduler.Stop()

	var auth handlers.CalendarAuth
	if cfg.GraphClientID != "" {
		auth = graph
	} else {
		log.Warn().Msg("PLANSYNC_GRAPH_CLIENT_ID not set, calendar connection is disabled")
	}

	router := api.NewRouter(api.Deps{
		DB:          db,
		Hub:         hub,
		Planner:     planService,
		Auth:        auth,
		Credentials: credentialRepo,
		Tasks:       taskRepo,
		Preferences: preferenceRepo,
		SyncRuns:    syncRunRepo,
		Sweep:       scheduler,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Plan requests wait on the planner and then on event creation.
		WriteTimeout: cfg.PlannerTimeout + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
