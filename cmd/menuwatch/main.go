// menuwatch scrapes JS-rendered retail menu pages through a remote
// browser and posts inventory batches downstream. The default mode runs
// one batch and exits (external cron); -serve runs the internal
// scheduler plus the ops API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/leafsignal/menuwatch/api"
	"github.com/leafsignal/menuwatch/browser"
	"github.com/leafsignal/menuwatch/config"
	"github.com/leafsignal/menuwatch/ingest"
	"github.com/leafsignal/menuwatch/resilience"
	"github.com/leafsignal/menuwatch/scraper"
	"github.com/leafsignal/menuwatch/webhook"
)

func main() {
	serve := flag.Bool("serve", false, "run the internal scheduler and ops API instead of a one-shot batch")
	flag.Parse()

	// 1. Configuration and logging.
	cfg := config.Load()
	initLogger(cfg.Log)

	// 2. Location list: embedded defaults or an external file.
	locations, err := config.LoadLocations(cfg.LocationsFile)
	if err != nil {
		slog.Error("loading locations failed", "file", cfg.LocationsFile, "error", err)
		os.Exit(1)
	}

	// 3. Collaborators and the orchestrator.
	registry := prometheus.NewRegistry()
	metrics := scraper.NewMetrics(registry)
	breakers := resilience.NewRegistry()
	sink := ingest.NewClient(cfg.Ingest, cfg.Notify, cfg.Resilience.FetchTimeout)
	sender := webhook.NewNotifier(cfg.Notify.DiscordWebhookURL)
	service := scraper.NewService(cfg, locations, sessionFactory(cfg), breakers, sink, sender, metrics)

	if !*serve {
		runOnce(service)
		return
	}
	runServer(cfg, service, registry)
}

// sessionFactory adapts the concrete browser session to the
// orchestrator's interface.
func sessionFactory(cfg *config.Config) scraper.SessionFactory {
	return func(ctx context.Context) (scraper.Session, error) {
		sess := browser.NewSession(cfg.Provider)
		if err := sess.Init(ctx); err != nil {
			return nil, err
		}
		return liveSession{sess}, nil
	}
}

type liveSession struct {
	*browser.Session
}

func (s liveSession) CreatePage(ctx context.Context) (scraper.Page, error) {
	return s.Session.CreatePage(ctx)
}

// runOnce executes a single batch and exits.
func runOnce(service *scraper.Service) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := service.Run(ctx); err != nil {
		slog.Error("batch run failed", "error", err)
		os.Exit(1)
	}
}

// runServer starts the cron schedule and the ops API, then blocks until
// a shutdown signal.
func runServer(cfg *config.Config, service *scraper.Service, registry *prometheus.Registry) {
	// 1. Internal schedule. An empty spec means external cron drives
	// the binary via POST /api/v1/runs instead.
	scheduler := cron.New()
	if cfg.Schedule.Spec != "" {
		_, err := scheduler.AddFunc(cfg.Schedule.Spec, func() {
			if _, err := service.Run(context.Background()); err != nil {
				if errors.Is(err, scraper.ErrRunInProgress) {
					slog.Warn("scheduled batch skipped, previous still running")
					return
				}
				slog.Error("scheduled batch failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("invalid cron spec", "spec", cfg.Schedule.Spec, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("scheduler started", "spec", cfg.Schedule.Spec)
	}

	// 2. Ops API.
	router := api.NewRouter(cfg, service, registry)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}
	go func() {
		slog.Info("ops API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops API failed", "error", err)
			os.Exit(1)
		}
	}()

	// 3. Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	cronCtx := scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("ops API shutdown failed", "error", err)
	}
	<-cronCtx.Done()
}

// initLogger installs the process-wide structured logger.
func initLogger(cfg config.LogConfig) {
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
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
