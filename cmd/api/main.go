package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/friendlens/internal/application"
	appanalysis "github.com/bryanwahyu/friendlens/internal/application/analysis"
	apphistory "github.com/bryanwahyu/friendlens/internal/application/history"
	"github.com/bryanwahyu/friendlens/internal/config"
	domanalysis "github.com/bryanwahyu/friendlens/internal/domain/analysis"
	"github.com/bryanwahyu/friendlens/internal/domain/history"
	"github.com/bryanwahyu/friendlens/internal/infra/ai/ark"
	"github.com/bryanwahyu/friendlens/internal/infra/ai/openaicompat"
	"github.com/bryanwahyu/friendlens/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/friendlens/internal/infra/storage"
	boltstore "github.com/bryanwahyu/friendlens/internal/infra/store/bolt"
	"github.com/bryanwahyu/friendlens/internal/infra/store/jsonfile"
	mysqlstore "github.com/bryanwahyu/friendlens/internal/infra/store/mysql"
	pgstore "github.com/bryanwahyu/friendlens/internal/infra/store/postgres"
	"github.com/bryanwahyu/friendlens/internal/logger"
	"github.com/bryanwahyu/friendlens/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	repo, cleanup, err := buildRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}
	defer cleanup()

	client := buildClient(cfg)
	if cfg.Upstream.APIKey == "" {
		slog.Warn("upstream API key is not set; analyze requests will fail until it is configured")
	}

	analyzeSvc := appanalysis.NewService(client, repo, application.SystemClock{}, cfg.Analysis.MinImages)
	historySvc := apphistory.NewService(repo)
	historySvc.Clock = application.SystemClock{}

	if cfg.Archive.Enabled {
		archiver, err := minioStore.New(ctx,
			cfg.Archive.Endpoint,
			cfg.Archive.Region,
			cfg.Archive.Bucket,
			cfg.Archive.AccessKey,
			cfg.Archive.SecretKey,
			cfg.Archive.UseSSL,
		)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		historySvc.Archiver = archiver
	}

	handler := httpserver.NewRouter(analyzeSvc, historySvc, httpserver.Options{
		MaxImages:     cfg.Analysis.MaxImages,
		MaxImageBytes: cfg.Analysis.MaxImageBytes,
		CORSOrigins:   cfg.Server.CORSOrigins,
		HealthChecks: map[string]middleware.HealthChecker{
			"store": middleware.HealthCheckerFunc(func(ctx context.Context) error {
				_, err := repo.List(ctx, "healthcheck")
				return err
			}),
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.Upstream.TimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "store", cfg.Store.Backend, "upstream", cfg.Upstream.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func buildRepository(ctx context.Context, cfg *config.Config) (history.Repository, func(), error) {
	noop := func() {}
	switch cfg.Store.Backend {
	case "jsonfile":
		return jsonfile.New(cfg.Store.Path, cfg.Analysis.Retention), noop, nil
	case "bolt":
		st, err := boltstore.New(cfg.Store.Path, cfg.Analysis.Retention)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { st.Close() }, nil
	case "mysql":
		db, err := mysqlstore.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, noop, err
		}
		repo := mysqlstore.NewRepository(db, cfg.Analysis.Retention)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return repo, func() { db.Close() }, nil
	case "postgres":
		db, err := pgstore.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, noop, err
		}
		repo := pgstore.NewRepository(db, cfg.Analysis.Retention)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return repo, func() { db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildClient(cfg *config.Config) domanalysis.Client {
	if cfg.Upstream.Provider == "openai" {
		return openaicompat.NewClient(cfg.Upstream.APIKey, cfg.Upstream.Endpoint, cfg.Upstream.Model)
	}
	return ark.NewClient(cfg.Upstream.APIKey, cfg.Upstream.Endpoint, cfg.Upstream.Model, cfg.UpstreamTimeout())
}
