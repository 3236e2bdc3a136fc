package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finledger-go/internal/config"
	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/handler"
	"github.com/boddenberg/finledger-go/internal/infra/backend"
	"github.com/boddenberg/finledger-go/internal/infra/cache"
	"github.com/boddenberg/finledger-go/internal/infra/client"
	"github.com/boddenberg/finledger-go/internal/infra/events"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/infra/resilience"
	"github.com/boddenberg/finledger-go/internal/port"
	"github.com/boddenberg/finledger-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("finledger stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_ttl", cfg.JWTTTL),
		zap.Bool("events_enabled", cfg.EventsEnabled()),
	)
	if cfg.UsesDevSecret() {
		logger.Warn("JWT_SECRET is the development default; set it before exposing the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Record store ---
	store, err := backend.Open(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("closing record store", zap.Error(err))
		}
	}()

	// --- Cache ---
	summaries := cache.New[*domain.DashboardSummary](cfg.CacheSize, cfg.CacheTTL)
	defer summaries.Close()

	// --- Ledger events ---
	var (
		publisher port.EventPublisher = events.NopPublisher{}
		consumer  *events.Client
	)
	if cfg.EventsEnabled() {
		c, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, metrics, logger)
		if err != nil {
			return fmt.Errorf("connect ledger events: %w", err)
		}
		defer c.Close()
		publisher, consumer = c, c
		logger.Info("ledger events enabled",
			zap.String("exchange", cfg.AMQPExchange),
			zap.String("queue", c.Queue()),
		)
	}

	// --- Suggestion model ---
	llm := client.NewLLMClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		client.LLMConfig{
			BaseURL:     cfg.LLMAPIURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
		},
		resilience.NewCircuitBreaker("llm"),
		resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		},
		metrics,
	)
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY is empty; suggestion requests will likely be rejected")
	}

	// --- Services ---
	summaryCache := service.NewSummaryCache(summaries)
	ledgerSvc := service.NewLedgerService(store, summaryCache, publisher, metrics, logger)
	profileSvc := service.NewProfileService(store, summaryCache, publisher, metrics, logger)
	authSvc := service.NewAuthService(store, store, cfg.JWTSecret, cfg.JWTTTL, cfg.BcryptCost, logger)
	suggestionSvc := service.NewSuggestionService(store, llm, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Ledger:       ledgerSvc,
		Profile:      profileSvc,
		Auth:         authSvc,
		Suggestions:  suggestionSvc,
		Store:        store,
		CookieSecure: cfg.CookieSecure,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Consume(gCtx, ledgerSvc.HandleLedgerEvent)
		})
	}

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
