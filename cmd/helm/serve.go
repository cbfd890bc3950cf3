package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/totegamma/helm/internal/config"
	"github.com/totegamma/helm/internal/infra/database"
	"github.com/totegamma/helm/internal/infra/repository"
	"github.com/totegamma/helm/internal/present/rest"
	helmmw "github.com/totegamma/helm/internal/present/rest/middleware"
	"github.com/totegamma/helm/internal/service"
	"github.com/totegamma/helm/internal/usecase"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the helm node",
		RunE: func(cmd *cobra.Command, args []string) error {
			commonRun()
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func setupTraceProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", programName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, cfg.Server.TraceEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("tracer shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	if cfg.Server.SentryDsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Server.SentryDsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Server.Environment,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	domainConfig := cfg.ToDomain()

	db, err := database.Open(cfg.Server.DatabaseDriver, cfg.Server.DatabaseDsn)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	var ledger usecase.Ledger = repository.NewLedgerRepository(db)
	if cfg.Server.MemcachedAddr != "" {
		mc := database.NewMemcached(cfg.Server.MemcachedAddr, 100*time.Millisecond)
		ledger = repository.NewCachedLedger(ledger, mc, cfg.Server.CacheTTL)
	}

	var publisher usecase.EventPublisher = service.LogPublisher{}
	var realtime rest.Realtime
	if cfg.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		signalService := service.NewSignalService(rdb)
		publisher = signalService
		realtime = signalService
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	clock := usecase.SystemClock{}
	auth := service.NewAuthService(domainConfig, clock)
	account := usecase.NewAccountUsecase(ledger, clock, publisher, metrics)
	membership := usecase.NewMembershipUsecase(ledger, clock, publisher, metrics)
	content := usecase.NewContentUsecase(domainConfig, ledger, clock, publisher, metrics)
	limiter := helmmw.NewRateLimiter(domainConfig.RateLimit, domainConfig.RateBurst)
	commit := usecase.NewCommitUsecase(limiter.Verifier(auth), account, membership, content)

	sweeper, err := service.NewSweeper(content, publisher, clock, metrics, cfg.Server.SweepCron)
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware(programName))
	}
	e.Use(helmmw.NewAuthMiddleware(auth, domainConfig).IdentifyIdentity)
	e.Use(limiter.Middleware)

	rest.NewHandler(domainConfig, commit, account, membership, content, realtime, registry).RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("bind", cfg.Server.Bind), slog.String("component", programName))
		if err := e.Start(cfg.Server.Bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
