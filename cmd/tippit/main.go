// Package main runs the tippit API server: community submissions with
// on-chain verified SOL tips.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	app "github.com/takshakmudgal/tippit/internal/app"
	"github.com/takshakmudgal/tippit/internal/app/httpapi"
	"github.com/takshakmudgal/tippit/internal/app/metrics"
	"github.com/takshakmudgal/tippit/internal/app/services/rates"
	"github.com/takshakmudgal/tippit/internal/app/storage/postgres"
	"github.com/takshakmudgal/tippit/internal/config"
	"github.com/takshakmudgal/tippit/internal/platform/database"
	"github.com/takshakmudgal/tippit/internal/solana"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Fatal("load configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).Named("tippit")

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Fatal("connect to database")
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
		store := postgres.New(db)
		stores = app.Stores{Users: store, Submissions: store, Tips: store}
		log.Info("using postgres store")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory store")
	}

	rpcClient, err := solana.NewClient(solana.Config{
		RPCURL:     cfg.Solana.RPCURL,
		Commitment: cfg.Solana.Commitment,
		Timeout:    cfg.Solana.Timeout,
	})
	if err != nil {
		log.WithError(err).Fatal("configure solana client")
	}

	fetcher, err := rates.NewJupiterFetcher(&http.Client{Timeout: 10 * time.Second}, cfg.Rates.Endpoint, rates.WrappedSOLMint, log)
	if err != nil {
		log.WithError(err).Fatal("configure rate fetcher")
	}

	var cache rates.Cache
	if cfg.Rates.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Rates.RedisAddr})
		cache = rates.NewRedisCache(client, "", cfg.Rates.CacheTTL)
		log.Info("using redis rate cache")
	} else {
		cache = rates.NewMemoryCache(cfg.Rates.CacheTTL)
	}

	m := metrics.New()

	application, err := app.New(stores, app.Options{
		Verifier:        solana.NewVerifier(rpcClient, log),
		RateFetcher:     fetcher,
		RateCache:       cache,
		RefreshInterval: cfg.Rates.RefreshInterval,
		AdminWallets:    cfg.Tips.AdminWallets,
		TipJarLimit:     cfg.Tips.TipJarLimit,
		Metrics:         m,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	handler := httpapi.NewHandler(application, log)
	if cfg.Server.RequestsPerSecond > 0 {
		limiter := httpapi.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst)
		handler = limiter.Middleware()(handler)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application stop")
	}

	log.Info("stopped")
}
