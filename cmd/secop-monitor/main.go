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
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/api"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/catalog"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/database"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/lock"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/logger"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/normalize"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/notify"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/refresh"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/repositories"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/snapshot"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/sources/secop"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Log)
	log.Info("configuration loaded", "path", *configPath, "storage", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.Path, cfg.Database.Debug, log)
	if err != nil {
		log.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	runs := repositories.NewRunStore(db)

	store, err := newSnapshotStore(ctx, cfg, db, log)
	if err != nil {
		log.Error("failed to initialize snapshot store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	var distributed lock.Distributed
	if cfg.Redis.URL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func(c *redis.Client) { _ = c.Close() }(client)
		redisLock := lock.NewRedisLock(client)
		distributed = redisLock
		log.Info("distributed refresh lock enabled", "owner", redisLock.OwnerID())
	}

	search := config.NewFileSearchProvider(cfg.SearchFile, log)
	cat := catalog.New()

	scheduler, err := refresh.New(refresh.Config{
		Active:         newFetcher(cfg, secop.ActiveEndpoint(cfg.Sources.ActiveURL), config.SourceActive, log),
		Historical:     newFetcher(cfg, secop.HistoricalEndpoint(cfg.Sources.HistoricalURL), config.SourceHistorical, log),
		Normalizer:     normalize.New(log),
		Store:          store,
		Catalog:        cat,
		Search:         search,
		Notifier:       newNotifier(cfg, log),
		Recipients:     cfg.Notify.Recipients,
		Runs:           runs,
		Lock:           distributed,
		LockTTL:        cfg.Redis.LockTTL,
		Interval:       cfg.Refresh.Interval,
		PageSize:       cfg.Sources.PageSize,
		RunImmediately: cfg.Refresh.RunOnStart,
		Logger:         log,
	})
	if err != nil {
		log.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Seed(ctx); err != nil {
		log.Warn("failed to seed from stored snapshots", "error", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Catalog:   cat,
		Refresher: scheduler,
		Search:    search,
		Runs:      runs,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		// POST /api/refresh holds the connection for a whole cycle.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	scheduler.Stop()
	log.Info("server exited")
}

func newFetcher(cfg *config.Config, endpoint secop.Endpoint, source string, log *slog.Logger) *secop.Fetcher {
	client := secop.NewClient(cfg.Limiter(source), cfg.Sources.Timeout, cfg.Sources.AppToken, log)
	return secop.NewFetcher(secop.FetcherConfig{
		Client:   client,
		Endpoint: endpoint,
		Workers:  cfg.Sources.Workers,
		Logger:   log,
	})
}

func newSnapshotStore(ctx context.Context, cfg *config.Config, db *bun.DB, log *slog.Logger) (snapshot.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageSQLite:
		return snapshot.NewSQLStore(db, log), nil
	case config.StorageMinio:
		bucket, err := snapshot.NewMinioBucket(ctx, cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		return snapshot.NewBlobStore(bucket, log), nil
	case config.StorageFilesystem, "":
		bucket, err := snapshot.NewDirBucket(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return snapshot.NewBlobStore(bucket, log), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	var multi notify.Multi
	if cfg.Notify.Email.Enabled() {
		multi = append(multi, notify.NewEmail(cfg.Notify.Email, log))
	} else {
		log.Info("email notifications disabled: SMTP credentials not set")
	}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatIDs, log)
		if err != nil {
			log.Error("telegram notifications disabled", "error", err)
		} else {
			multi = append(multi, tg)
		}
	}
	return multi
}
