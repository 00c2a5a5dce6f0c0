// Command server runs the Gridfinity generation API.
//
//	@title			Gridfinity Generation API
//	@version		0.1.0
//	@description	Generates Gridfinity bins, baseplates and build plates as STL, ZIP and 3MF.
//	@BasePath		/api
//	@schemes		http https
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/gridfinity-server/internal/admission"
	"github.com/tbourn/gridfinity-server/internal/cache"
	"github.com/tbourn/gridfinity-server/internal/config"
	"github.com/tbourn/gridfinity-server/internal/geometry"
	httpapi "github.com/tbourn/gridfinity-server/internal/http"
	"github.com/tbourn/gridfinity-server/internal/jobs"
	"github.com/tbourn/gridfinity-server/internal/observability"
	"github.com/tbourn/gridfinity-server/internal/repo"
	"github.com/tbourn/gridfinity-server/internal/services"
	"github.com/tbourn/gridfinity-server/internal/sysutil"
)

const version = "0.1.0"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	gin.SetMode(cfg.GinMode)
	sysutil.SetLogLevel(cfg.LogLevel)
	sysutil.SetupLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen, genName, err := newGenerator(cfg.Generator)
	if err != nil {
		log.Fatal().Err(err).Msg("generator init failed")
	}

	info := observability.BuildInfo{Version: version, Generator: genName}
	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, info)
	if err != nil {
		log.Fatal().Err(err).Msg("otel init failed")
	}
	if err := observability.RegisterBuildInfo(prometheus.DefaultRegisterer, info); err != nil {
		log.Warn().Err(err).Msg("build info not registered")
	}

	store, closeStore, err := openStore(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Cache.Store).Msg("artifact store init failed")
	}
	defer closeStore()

	opts := []cache.Option{
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithGenerateTimeout(cfg.Cache.GenerateTimeout),
	}
	if store != nil {
		opts = append(opts, cache.WithStore(store))
	}
	artifacts := cache.New(opts...)
	svc := services.NewGenerationService(artifacts, gen)

	mgr := jobs.New(svc, jobs.Config{
		Workers:        cfg.Jobs.Workers,
		Timeout:        cfg.Jobs.Timeout,
		MaxAge:         cfg.Jobs.MaxAge,
		MaxJobs:        cfg.Jobs.MaxCount,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})

	var admit admission.Admitter = admission.Noop{}
	if cfg.Admission.Enabled {
		admit = admission.NewLimiter(admission.Limits{
			PerMinute:  cfg.Admission.PerMinute,
			Concurrent: cfg.Admission.Concurrent,
			Daily:      cfg.Admission.Daily,
		})
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Generator: svc,
		Jobs:      mgr,
		Admitter:  admit,
		Version:   version,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("generator", genName).
			Str("store", cfg.Cache.Store).
			Int("workers", cfg.Jobs.Workers).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := mgr.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("job manager shutdown")
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Int("cached_artifacts", artifacts.Len()).Msg("stopped")
}

// newGenerator returns the CAD command backend, or the preview generator when
// no command is configured.
func newGenerator(cfg config.GeneratorConfig) (geometry.Generator, string, error) {
	if cfg.Command == "" {
		log.Warn().Msg("GRID_GENERATOR_COMMAND not set; serving preview geometry")
		return geometry.PreviewGenerator{}, "preview", nil
	}
	g, err := geometry.NewCommandGenerator(cfg.Command)
	if err != nil {
		return nil, "", err
	}
	return g, "command", nil
}

// openStore opens the configured second-level artifact store. A nil store
// means the in-memory cache stands alone.
func openStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		n, latest, err := repo.ArtifactStats(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		ev := log.Info().Str("path", cfg.DBPath).Int64("artifacts", n)
		if latest != nil {
			ev = ev.Time("latest", *latest)
		}
		ev.Msg("artifact store opened")

		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return cache.NewSQLiteStore(db), closeFn, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; store errors degrade to cache misses")
		}
		return cache.NewRedisStore(client, cfg.RedisTTL), func() { _ = client.Close() }, nil

	default:
		return nil, func() {}, nil
	}
}
