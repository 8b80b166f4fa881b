package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/handler"
	"github.com/xenking/kart-storefront/internal/seed"
	"github.com/xenking/kart-storefront/internal/storage/memory"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/pkg/health"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// NewMemoryBackend returns an in-memory backend loaded from the seed config.
func NewMemoryBackend(ctx context.Context, cfg ServerConfig) (*memory.Store, error) {
	store := memory.New()
	if cfg.Seed.File != "" {
		data, err := seed.ReadFile(cfg.Seed.File)
		if err != nil {
			return nil, errors.Wrap(err, "read seed")
		}
		if err := seed.Apply(ctx, store, data); err != nil {
			return nil, errors.Wrap(err, "apply seed")
		}
	}

	if _, err := store.GetTaxConfig(ctx); errors.Is(err, invoice.ErrConfigNotFound) {
		tax, err := decimal.NewFromString(cfg.Seed.TaxPercent)
		if err != nil {
			return nil, errors.Wrap(err, "parse seed tax percent")
		}
		if err := store.UpdateTaxConfig(ctx, &invoice.TaxConfig{
			ID:           cfg.ConfigID,
			TaxPercent:   tax,
			NextSequence: cfg.Seed.NextSequence,
		}); err != nil {
			return nil, errors.Wrap(err, "seed tax config")
		}
	}
	return store, nil
}

// NewRouter mounts the store API under /api and the probes at the root.
func NewRouter(
	lg *zap.Logger,
	cfg ServerConfig,
	backend handler.Store,
	probes *health.Checker,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL, ConfigID: cfg.ConfigID},
		backend, backend, backend, backend,
	)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", probes.Handler(health.Liveness))
	r.Get("/readyz", probes.Handler(health.Readiness))
	r.Mount("/api", h.Routes())

	return otelhttp.NewHandler(r, "store-server",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
	)
}

// RunServer creates all dependencies, serves the store API and shuts down
// gracefully when ctx is cancelled.
func RunServer(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *ServerConfig) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.Bool("postgres", cfg.DatabaseURL != ""))

	probes := health.New(cfg.Health)
	probes.Register(health.Liveness, "goroutines", health.Goroutines(10000))

	var backend handler.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		probes.Register(health.Readiness, "postgres", health.Ping(pool))
		backend = postgres.NewStore(pool, cfg.ConfigID)
	} else {
		store, err := NewMemoryBackend(ctx, *cfg)
		if err != nil {
			return err
		}
		backend = store
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           NewRouter(lg, *cfg, backend, probes, m.TracerProvider(), m.MeterProvider()),
	}

	probes.Start(ctx)
	defer probes.Stop()
	probes.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		if ctx.Err() != nil {
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
