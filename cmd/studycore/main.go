package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mukti-ai/studycore/internal/assistant"
	"github.com/mukti-ai/studycore/internal/auth"
	"github.com/mukti-ai/studycore/internal/config"
	"github.com/mukti-ai/studycore/internal/domain"
	"github.com/mukti-ai/studycore/internal/media"
	"github.com/mukti-ai/studycore/internal/provider"
	"github.com/mukti-ai/studycore/internal/resolver"
	"github.com/mukti-ai/studycore/internal/server"
	"github.com/mukti-ai/studycore/internal/settings"
	"github.com/mukti-ai/studycore/internal/storage/sqlite"
	"github.com/mukti-ai/studycore/internal/study"
	"github.com/mukti-ai/studycore/internal/telemetry"
	"github.com/mukti-ai/studycore/internal/tokens"
	"github.com/mukti-ai/studycore/internal/tools"
	"github.com/mukti-ai/studycore/internal/usage"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stderr, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, sink, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStore()

	counterOpts := []usage.Option{usage.WithLogger(logger)}
	if sink != nil {
		counterOpts = append(counterOpts, usage.WithSink(sink))
	}
	counter := usage.NewCounter(cfg.Usage.Threshold, counterOpts...)
	if sqliteStore, ok := store.(*sqlite.Store); ok {
		snap, found, err := sqliteStore.LoadUsage(ctx)
		if err != nil {
			logger.Warn("failed to restore usage counter", slog.String("error", err.Error()))
		} else if found {
			counter.Restore(snap)
		}
	}

	if cfg.Settings.File != "" {
		if err := watchSettingsFile(ctx, cfg, store, logger); err != nil {
			log.Fatalf("Failed to load settings file: %v", err)
		}
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	resolverOpts := []resolver.Option{}
	for kind, url := range cfg.Providers.BaseURLs() {
		if url != "" {
			resolverOpts = append(resolverOpts, resolver.WithBaseURL(kind, url))
		}
	}

	proxyURL := cfg.Tools.ProxyURL
	if proxyURL == "direct" {
		proxyURL = ""
	}
	toolOpts := []tools.Option{
		tools.WithHTTPClient(&http.Client{Timeout: cfg.Tools.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}),
		tools.WithLogger(logger),
	}
	if cfg.Tools.ProxyURL != "" {
		toolOpts = append(toolOpts, tools.WithProxyURL(proxyURL))
	}

	ai := assistant.New(store,
		resolver.New(cfg.Providers.Keys(), resolverOpts...),
		provider.NewRegistry(httpClient),
		assistant.WithToolbox(tools.NewExecutor(toolOpts...)),
		assistant.WithUsage(counter),
		assistant.WithTokenRegistry(tokens.NewRegistry()),
		assistant.WithChatSystem(func(s domain.Settings) string {
			return study.ContextPrompt(s, time.Now())
		}),
		assistant.WithLogger(logger),
	)

	features := study.New(ai,
		study.WithLogger(logger),
		study.WithContextPrompt(func() string {
			s, err := store.Get(context.Background())
			if err != nil {
				return ""
			}
			return study.ContextPrompt(s, time.Now())
		}),
	)

	keys := make([]auth.Key, 0, len(cfg.Server.APIKeys))
	for _, k := range cfg.Server.APIKeys {
		keys = append(keys, auth.Key{Hash: k.KeyHash, Description: k.Description})
	}

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		Auth:           auth.NewAuthenticator(keys),
		Logger:         logger,
	}, server.Deps{
		Assistant: ai,
		Study:     features,
		Settings:  store,
		Usage:     counter,
		Images:    media.NewLoader(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// openStore returns the settings store and, for sqlite, the usage sink.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (settings.Store, usage.Sink, func(), error) {
	switch cfg.Storage.Type {
	case "sqlite":
		s, err := sqlite.New(cfg.Storage.SQLite.Path, cfg.Settings.Defaults)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using sqlite storage", slog.String("path", cfg.Storage.SQLite.Path))
		return s, s, func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close storage", slog.String("error", err.Error()))
			}
		}, nil
	case "", "memory":
		return settings.NewMemory(cfg.Settings.Defaults), nil, func() {}, nil
	default:
		return nil, nil, nil, errors.New("unknown storage type " + cfg.Storage.Type)
	}
}

// watchSettingsFile saves the settings file into store at startup and on
// every change until ctx is done.
func watchSettingsFile(ctx context.Context, cfg *config.Config, store settings.Store, logger *slog.Logger) error {
	f, err := settings.NewFile(cfg.Settings.File, cfg.Settings.Defaults, logger)
	if err != nil {
		return err
	}
	initial, err := f.Load()
	if err != nil {
		return err
	}
	if err := store.Save(ctx, initial); err != nil {
		return err
	}

	return f.Watch(ctx, func(s domain.Settings) {
		if err := store.Save(ctx, s); err != nil {
			logger.Error("failed to save reloaded settings", slog.String("error", err.Error()))
		}
	})
}
