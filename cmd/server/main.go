package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ocpigw/internal/admin"
	"ocpigw/internal/client"
	"ocpigw/internal/credentials"
	credentialsmetrics "ocpigw/internal/credentials/metrics"
	"ocpigw/internal/gate"
	gatemetrics "ocpigw/internal/gate/metrics"
	"ocpigw/internal/party"
	"ocpigw/internal/platform/config"
	"ocpigw/internal/platform/httpserver"
	"ocpigw/internal/platform/logger"
	platformmetrics "ocpigw/internal/platform/metrics"
	platformredis "ocpigw/internal/platform/redis"
	httptransport "ocpigw/internal/transport/http"
	"ocpigw/internal/versions"
	versionsmetrics "ocpigw/internal/versions/metrics"
	"ocpigw/pkg/ocpi"
)

// main wires the process: config, logger, optional Redis snapshotting, the
// party registry, the handshake engine and the HTTP surface. Business logic
// lives in the internal packages.
func main() {
	cfg := config.Load()
	log := logger.New()

	localRef, err := cfg.PartyRef()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	preferredVersion, err := cfg.Version()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	var snapshotter party.Snapshotter
	var health httptransport.HealthChecker
	if redisClient != nil {
		snapshotter = party.NewRedisSnapshotter(redisClient.Client)
		health = redisClient
		defer redisClient.Close()
	}

	registry := party.NewRegistry(snapshotter, log)
	if snapshotter != nil {
		if err := registry.Restore(ctx); err != nil {
			log.Error("registry restore failed", "error", err)
			os.Exit(1)
		}
	}
	if cfg.SeedFile != "" {
		added, err := party.SeedFromFile(ctx, registry, cfg.SeedFile, time.Now())
		if err != nil {
			log.Error("seed load failed", "file", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
		log.Info("seed loaded", "file", cfg.SeedFile, "parties_added", added)
	}

	accessGate := gate.New(registry, log, gatemetrics.New())
	versionsHandler := versions.NewHandler(cfg.BaseURL, accessGate, log)
	discovery := versions.NewClient(cfg.HTTPTimeout, log, versionsmetrics.New())
	dispatcher := client.NewDispatcher(registry, cfg.HTTPTimeout, log)

	node := credentials.LocalNode{
		Ref: localRef,
		BusinessDetails: ocpi.BusinessDetails{
			Name:    cfg.BusinessName,
			Website: cfg.BusinessWebsite,
		},
		VersionsURL:      versionsHandler.VersionsURL(),
		PreferredVersion: preferredVersion,
	}
	engine := credentials.NewService(node, registry, discovery, dispatcher, cfg.HTTPTimeout, log, credentialsmetrics.New())

	credentialsHandler := credentials.NewHandler(engine, accessGate, log)
	adminHandler := admin.New(registry, engine, cfg.AdminToken, log)

	router := httptransport.NewRouter(log, platformmetrics.New(), health,
		versionsHandler,
		credentialsHandler,
		adminHandler,
	)

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server starting",
			"addr", cfg.Addr,
			"base_url", cfg.BaseURL,
			"party", localRef.String(),
			"version", preferredVersion.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
