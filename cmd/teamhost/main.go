package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/teamhost/internal/adapter/chat"
	"github.com/neomorfeo/teamhost/internal/adapter/fsm"
	"github.com/neomorfeo/teamhost/internal/adapter/helix"
	"github.com/neomorfeo/teamhost/internal/adapter/metrics"
	oteladapter "github.com/neomorfeo/teamhost/internal/adapter/otel"
	riveradapter "github.com/neomorfeo/teamhost/internal/adapter/river"
	"github.com/neomorfeo/teamhost/internal/adapter/sqlite"
	"github.com/neomorfeo/teamhost/internal/app"
	"github.com/neomorfeo/teamhost/internal/config"

	handler "github.com/neomorfeo/teamhost/internal/adapter/http"
)

func main() {
	configPath := flag.String("config", "", "path to a teamhost.yaml file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("teamhost exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Log))

	// --- Observability ---
	providers, err := oteladapter.Setup(ctx, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	m := metrics.New()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	riverClient, err := riveradapter.Setup(ctx, db, store)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Warn("river shutdown", "error", err)
		}
	}()

	source := oteladapter.NewTracingCandidateSource(m.Source(helix.New(helix.Config{
		BaseURL:           cfg.Helix.BaseURL,
		ClientID:          cfg.Helix.ClientID,
		Token:             cfg.Helix.Token,
		RequestsPerSecond: cfg.Helix.RequestsPerSecond,
		Timeout:           cfg.Helix.Timeout,
	}, nil)))

	hub := chat.New()
	defer hub.Close()
	teams := oteladapter.NewTracingTeamStore(store)

	// --- Application ---
	registry := app.NewRegistry(teams, app.Deps{
		Source:    source,
		Transport: oteladapter.NewTracingTransport(hub),
		Recorder:  m.Recorder(riveradapter.NewRecorder(riverClient)),
		Log:       store,
		Validator: fsm.New(),
		Clock:     app.SystemClock{},
		Random:    app.MathRandom{},
	})
	svc := app.NewHostingService(teams, store, registry)
	defer svc.Shutdown()

	if err := seedTeams(ctx, svc, cfg); err != nil {
		return err
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware(cfg.Telemetry.ServiceName, otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion))
	handler.Register(api, svc, hub)
	router.Handle("/metrics", m.Handler())

	// --- Server ---
	addr := ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("teamhost listening", "addr", addr, "docs", "http://localhost"+addr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}

	slog.Info("stopped")
	return runErr
}

// seedTeams upserts the configured teams and starts those marked autostart.
func seedTeams(ctx context.Context, svc *app.HostingService, cfg *config.Config) error {
	for _, tc := range cfg.Teams {
		if _, err := svc.RegisterTeam(ctx, cfg.Team(tc)); err != nil {
			return fmt.Errorf("seeding team %s: %w", tc.ID, err)
		}
		if !tc.Autostart {
			continue
		}
		if err := svc.Start(ctx, tc.ID); err != nil {
			return fmt.Errorf("starting team %s: %w", tc.ID, err)
		}
	}
	if len(cfg.Teams) > 0 {
		slog.Info("seeded teams", "count", len(cfg.Teams))
	}
	return nil
}

func telemetryConfig(tc config.TelemetryConfig) oteladapter.Config {
	return oteladapter.Config{
		ServiceName:    tc.ServiceName,
		ServiceVersion: tc.ServiceVersion,
		Environment:    tc.Environment,
		Exporter:       tc.Exporter,
		Insecure:       tc.Environment == "development",
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
