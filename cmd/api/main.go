package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"fare-offers-api/internal/cache"
	"fare-offers-api/internal/config"
	"fare-offers-api/internal/database"
	"fare-offers-api/internal/events"
	"fare-offers-api/internal/features"
	"fare-offers-api/internal/handler"
	"fare-offers-api/internal/logger"
	"fare-offers-api/internal/metrics"
	"fare-offers-api/internal/middleware"
	"fare-offers-api/internal/provider"
	"fare-offers-api/internal/service"
	"fare-offers-api/internal/tracing"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a JSON config file (env vars take precedence)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(nil, cfg.Debug)
	chimw.DefaultLogger = chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: logger.Std(), NoColor: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.JaegerEndpoint,
		Version:     version,
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	flags, unknown := features.NewManager(cfg.EnabledFeatures()...)
	for _, name := range unknown {
		logger.Errorf("Ignoring unknown feature flag %q", name)
	}

	reg := metrics.NewRegistry()

	var store cache.Cache = cache.NewInMemoryCache()
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Errorf("Redis unavailable, using in-memory cache: %v", err)
		} else {
			defer rc.Close()
			store = rc
		}
	}

	eventMgr := events.NewManager(flags.Gate(features.FeatureEventHooks))
	eventMgr.SubscribeAll(events.LogHandler)
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		sink := events.NewKafkaSink(brokers, cfg.Events.Topic)
		defer sink.Close()
		eventMgr.SubscribeAll(sink.Handle)
	}

	var live provider.Provider
	if cfg.Provider.ClientID != "" {
		tokens := provider.NewTokenCache(
			provider.NewClientCredentialsSource(cfg.Provider.TokenURL, cfg.Provider.ClientID, cfg.Provider.ClientSecret),
			config.Duration(cfg.Provider.TokenSkew),
		)
		live = provider.NewAmadeusClient(cfg.Provider.BaseURL, tokens, config.Duration(cfg.Provider.Timeout))
	} else {
		logger.Infof("No provider credentials configured, serving synthetic quotes")
	}

	quotes := provider.NewCachedProvider(
		provider.NewFallbackProvider(live, provider.NewSyntheticProvider(),
			provider.WithFallbackRecorder(reg),
			provider.WithFallbackGate(flags.Gate(features.FeatureSyntheticFallback)),
		),
		store,
		config.Duration(cfg.Cache.QuoteTTL),
		flags.Gate(features.FeatureResponseCache),
	)
	// Quotes cached by a previous run may come from another provider setup.
	if err := quotes.Purge(ctx); err != nil {
		logger.Errorf("Failed to purge cached quotes: %v", err)
	}

	svc := service.NewService(db, quotes,
		service.WithEvents(eventMgr),
		service.WithMetrics(reg),
		service.WithFeatures(flags),
		service.WithPaymentOptionsCache(store, config.Duration(cfg.Cache.PaymentOptionsTTL)),
		service.WithSampleSize(cfg.Offers.PaymentOptionsSample),
		service.WithMaxResults(cfg.Provider.MaxResults),
	)

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Features:    flags,
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, config.Duration(cfg.RateLimit.Window))
		defer limiter.Stop()
	}

	r := newRouter(h, routerOptions{
		limiter:        limiter,
		tracing:        cfg.Tracing.Enabled,
		allowedOrigins: cfg.Security.AllowedOrigins,
		metrics:        reg.Handler(),
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout:      config.Duration(cfg.Server.WriteTimeout),
	}

	protocol := "HTTP"
	if cfg.Server.EnableTLS {
		protocol = "HTTPS"
	}
	logger.Infof("Starting %s server on %s (version %s)", protocol, server.Addr, version)
	logger.Infof("Database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		logger.Infof("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	serveErr := make(chan error, 1)
	go func() {
		if cfg.Server.EnableTLS {
			serveErr <- server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
			return
		}
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Infof("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}
	if err := eventMgr.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Event handlers did not finish: %v", err)
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down tracer: %v", err)
	}
}
