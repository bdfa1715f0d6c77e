// Package main is the entry point for the backoffice list view server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/definition"
	"github.com/pitabwire/backoffice/internal/invoker"
	"github.com/pitabwire/backoffice/internal/listing"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/internal/openapi"
	"github.com/pitabwire/backoffice/internal/options"
	"github.com/pitabwire/backoffice/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "backoffice", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// OpenAPI index.
	oaIndex := openapi.NewIndex()
	specSources := buildSpecSources(cfg.Specs)
	if err := oaIndex.Load(specSources); err != nil {
		logger.Error("OpenAPI index load failed", zap.Error(err))
		return 1
	}
	for _, s := range specSources {
		metrics.SetOpenAPIOperationsIndexed(s.ServiceID, float64(len(oaIndex.AllOperationIDs(s.ServiceID))))
	}

	// Definitions.
	defs, err := definition.NewLoader().LoadAll(cfg.Definitions.Directories)
	if err != nil {
		metrics.RecordDefinitionReload("error")
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}
	validator := definition.NewValidator(listing.RendererNames(), cfg.Definitions.ValidateLabels)
	if verrs := validator.Validate(defs, oaIndex); len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		metrics.RecordDefinitionReload("invalid")
		logger.Error("definition validation failed", zap.Int("errors", len(verrs)))
		return 1
	}
	registry := definition.NewRegistry(defs)
	metrics.RecordDefinitionReload("ok")
	metrics.SetDefinitionsLoaded(float64(len(registry.ViewIDs())))

	// Backend invocation.
	sdkHandlers := invoker.NewSDKHandlerRegistry()
	invokers := invoker.NewRegistry()
	invokers.Register(invoker.NewOpenAPIOperationInvoker(oaIndex, cfg.Services, logger, metrics))
	invokers.Register(invoker.NewSDKOperationInvoker(sdkHandlers))

	// Option sources.
	store, storeCloser, err := buildOptionStore(ctx, cfg.Options, logger)
	if err != nil {
		logger.Error("option store initialization failed", zap.Error(err))
		return 1
	}
	sources := options.NewLookupSources(registry.AllOptionSources(), options.LookupConfig{
		Invoker:    invokers,
		Store:      store,
		KeyPrefix:  cfg.Options.Store.KeyPrefix,
		DefaultTTL: cfg.Options.Cache.TTL,
		Logger:     logger,
		Metrics:    metrics,
	})

	var warmer *options.Warmer
	if cfg.Options.Warmup.Enabled {
		warmer = options.NewWarmer(sources, logger, metrics)
		if err := warmer.Start(cfg.Options.Warmup.Schedule); err != nil {
			logger.Error("option warmup failed to start", zap.Error(err))
			return 1
		}
		logger.Info("option warmup scheduled",
			zap.String("schedule", cfg.Options.Warmup.Schedule),
			zap.Strings("sources", warmer.Targets()),
		)
	}

	// List views and filter sessions.
	provider := listing.NewProvider(listing.Deps{
		Definitions: registry,
		Invoker:     invokers,
		Sources:     sources,
		Services:    cfg.Services,
		Listing:     cfg.Listing,
		Logger:      logger,
		Metrics:     metrics,
	})
	sessions := listing.NewSessions(provider, cfg.Sessions, logger, metrics)

	readiness := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return len(registry.ViewIDs()) > 0 },
		OpenAPILoaded: func() bool {
			for _, s := range specSources {
				if len(oaIndex.AllOperationIDs(s.ServiceID)) > 0 {
					return true
				}
			}
			return len(specSources) == 0
		},
		OptionStore:     store,
		SessionCapacity: sessions.Capacity,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Views:     provider,
		Sessions:  sessions,
		Readiness: readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go sessions.Run(bgCtx)

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("views", len(registry.ViewIDs())),
		zap.String("definitions_checksum", registry.Checksum()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()
	if warmer != nil {
		warmer.Stop()
	}
	if storeCloser != nil {
		storeCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildSpecSources converts config spec sources to openapi.SpecSource.
func buildSpecSources(specsCfg config.SpecsConfig) []openapi.SpecSource {
	sources := make([]openapi.SpecSource, len(specsCfg.Sources))
	for i, s := range specsCfg.Sources {
		specPath := s.SpecFile
		if specsCfg.Directory != "" && !filepath.IsAbs(specPath) {
			specPath = filepath.Join(specsCfg.Directory, specPath)
		}
		sources[i] = openapi.SpecSource{
			ServiceID: s.ServiceID,
			SpecPath:  specPath,
		}
	}
	return sources
}

// buildOptionStore creates the option cache store based on config.
func buildOptionStore(ctx context.Context, cfg config.OptionsConfig, logger *zap.Logger) (options.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory option store")
		return options.NewMemoryStore(cfg.Cache.MaxEntries), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("option store: %s environment variable not set", cfg.Store.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Store.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("option store: ping: %w", err)
		}
		logger.Info("using redis option store", zap.String("addr", addr), zap.Int("db", cfg.Store.DB))
		return options.NewRedisStore(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported option store driver: %q", cfg.Store.Driver)
	}
}
