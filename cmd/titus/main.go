package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"titus/internal/amqp"
	"titus/internal/backend"
	"titus/internal/cache"
	"titus/internal/cli"
	apphttp "titus/internal/http"
	tlog "titus/internal/log"
	"titus/internal/metrics"
	"titus/internal/metrics/prom"
	"titus/internal/middleware/ratelimit"
	"titus/internal/middleware/security"
	"titus/internal/report"
	"titus/internal/services"
	"titus/internal/session"
	"titus/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	promBackend, err := prom.NewBackend()
	if err != nil {
		logger.Error("Failed to register metrics", tlog.FieldError, err)
		os.Exit(1)
	}
	metrics.SetBackend(promBackend)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", tlog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(tlog.ComponentBackend).Logger).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", tlog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", tlog.FieldError, err)
			}
		}()
	}

	// Both stay nil interfaces when AMQP is off.
	var (
		publisher services.Publisher
		consumer  worker.Consumer
	)
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", tlog.FieldError, err, "exchange", cfg.AMQPExchange)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("AMQP close failed", tlog.FieldError, err)
			}
		}()
		publisher, consumer = client, client
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	datasets := services.NewDatasetService(result.Source, publisher, logger.WithComponent(tlog.ComponentDataset).Logger)

	catalog, err := loadCatalog(cfg.ReportsFile)
	if err != nil {
		logger.Error("Failed to load report definitions", tlog.FieldError, err, "file", cfg.ReportsFile)
		os.Exit(1)
	}

	sessions := session.NewStore(cfg.SessionCapacity, cfg.SessionTTL, session.WithSecureCookie(cfg.CookieSecure))
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM})

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Catalog:        catalog,
		Datasets:       datasets,
		Sessions:       sessions,
		Limiter:        limiter,
		Detector:       security.NewDetector(),
		Logger:         logger.WithComponent(tlog.ComponentHTTP),
		Metrics:        promBackend.Handler(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", tlog.FieldError, err)
		os.Exit(1)
	}
	// Writes cover a full reload of the source.
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 45 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager(logger.WithComponent(tlog.ComponentSession).Logger)
	caches.Register(sessions.Cleaner())
	caches.Register(srv.ChartCache())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting titus server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", tlog.FieldError, err)
		}
		return nil
	})

	if datasets.HasSource() {
		refresh := worker.NewRefreshWorker(datasets, consumer, cfg.RefreshInterval, logger.WithComponent(tlog.ComponentWorker).Logger)
		g.Go(func() error { return refresh.Run(gctx) })
	}
	g.Go(func() error {
		caches.Run(gctx, sweepInterval)
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx, sweepInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", tlog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func loadCatalog(path string) (*report.Catalog, error) {
	if path == "" {
		return report.Default()
	}
	return report.LoadFile(path)
}
