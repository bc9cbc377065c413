package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcnester/glycofy-api/internal/api"
	"github.com/marcnester/glycofy-api/internal/auth"
	"github.com/marcnester/glycofy-api/internal/config"
	"github.com/marcnester/glycofy-api/internal/observability"
	"github.com/marcnester/glycofy-api/internal/outbox"
	"github.com/marcnester/glycofy-api/internal/persistence/postgres"
	"github.com/marcnester/glycofy-api/internal/scheduler"
	"github.com/marcnester/glycofy-api/internal/strava"
	"github.com/marcnester/glycofy-api/internal/sync"
	httptransport "github.com/marcnester/glycofy-api/internal/transport/http"
)

func main() {
	cfg := config.Load()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, log.Default()); err != nil {
		log.Printf("sentry init failed: %v", err)
	}
	defer observability.FlushSentry(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	accounts := postgres.NewAccountRepository(pool)
	activities := postgres.NewActivityRepository(pool)

	client := strava.NewClient(strava.ClientConfig{
		ClientID:     cfg.StravaClientID,
		ClientSecret: cfg.StravaClientSecret,
		RedirectURI:  cfg.StravaRedirectURI,
	})

	tokens := sync.NewTokenManager(accounts, client)
	normalizer := sync.NewNormalizer(cfg.KcalPerMinute)
	reconciler := sync.NewReconciler(activities)
	syncer := sync.NewSyncer(tokens, client, normalizer, reconciler, cfg.SyncPageSize, cfg.SyncMaxPages)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	sched := scheduler.New(accounts, syncer, scheduler.Config{
		Provider: api.Provider,
		Interval: cfg.SyncInterval,
		Jitter:   cfg.SyncJitter,
	})
	if cfg.SyncEnabled {
		sched.Start()
	} else {
		log.Printf("auto sync disabled by configuration")
	}

	handler := api.NewHandler(accounts, activities, client, syncer)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("glycofy-api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("scheduler stop: %v", err)
	}
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
