package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/watson-developer-cloud/assistant-effort/internal/api"
	"github.com/watson-developer-cloud/assistant-effort/internal/config"
	"github.com/watson-developer-cloud/assistant-effort/internal/events"
	"github.com/watson-developer-cloud/assistant-effort/internal/fetch"
	"github.com/watson-developer-cloud/assistant-effort/internal/pipeline"
	"github.com/watson-developer-cloud/assistant-effort/internal/signing"
	"github.com/watson-developer-cloud/assistant-effort/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("effortd starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional, without it runs are not persisted)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		s, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer s.Close()
		db = s
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, runs will not be persisted")
	}

	// NATS (optional, the service degrades to API-only without it)
	var bus *events.Client
	if cfg.NatsURL != "" {
		c, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("failed to connect to NATS, running API-only", "error", err)
		} else {
			defer c.Close()
			bus = c
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	} else {
		slog.Warn("NATS not configured, running API-only")
	}

	// Log fetcher
	var fetcher pipeline.LogFetcher
	var cache *fetch.Cache
	if cfg.AssistantAPIKey != "" {
		fetcher = fetch.NewClient(cfg.AssistantURL, cfg.AssistantAPIKey, cfg.AssistantVersion, slog.Default())
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			slog.Error("failed to create cache dir", "dir", cfg.CacheDir, "error", err)
			os.Exit(1)
		}
		cache = fetch.NewCache(cfg.CacheDir)
	} else {
		slog.Warn("ASSISTANT_API_KEY not set, run requests will fail")
	}

	// Run artifacts: workbook and utterance CSV per run, with a presigned
	// download link when object storage is configured.
	var exporter *pipeline.Exporter
	if cfg.ExportDir != "" {
		exporter = &pipeline.Exporter{Dir: cfg.ExportDir}
		if cfg.LinkSigningConfigured() {
			expiry, err := signing.ParseExpiry(cfg.COSLinkExpiry)
			if err != nil {
				slog.Error("invalid COS_LINK_EXPIRY", "error", err)
				os.Exit(1)
			}
			exporter.Link = &pipeline.LinkConfig{
				Endpoint: cfg.COSEndpoint,
				Bucket:   cfg.COSBucket,
				Region:   cfg.COSRegion,
				Credentials: signing.Credentials{
					AccessKeyID:     cfg.COSAccessKeyID,
					SecretAccessKey: cfg.COSSecretAccessKey,
				},
				Expiry: expiry,
			}
			slog.Info("presigned links enabled", "bucket", cfg.COSBucket)
		}
	} else {
		slog.Warn("EFFORT_EXPORT_DIR not set, runs will not be exported")
	}

	proc := pipeline.New(db, bus, fetcher, cache, exporter, slog.Default())

	if bus != nil {
		if err := bus.Subscribe(events.SubjectRunRequested, proc.HandleRunRequested); err != nil {
			slog.Error("failed to subscribe to run requests", "error", err)
			os.Exit(1)
		}
	}

	srv := api.NewServer(cfg.Port, proc, db, cfg.CORSOrigins, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("effortd ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("effortd stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
