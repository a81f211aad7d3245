package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"billing/internal/billing/handler"
	billingmetrics "billing/internal/billing/metrics"
	"billing/internal/billing/service"
	"billing/internal/platform/config"
	"billing/internal/platform/httpserver"
	"billing/internal/platform/logger"
	"billing/internal/platform/metrics"
	"billing/internal/platform/middleware"
)

// main wires high-level dependencies, exposes the HTTP router and runs the
// outbox relay next to it. Business logic lives in internal/billing.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("billing server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)

	deps, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	svc := service.New(deps.invoices, deps.payments, deps.customers, deps.allocator,
		service.WithLogger(log),
		service.WithMetrics(billingmetrics.New(reg)),
		service.WithTx(deps.tx),
		service.WithOutbox(deps.events),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log, httpMetrics))
	r.Use(middleware.Recovery(log, httpMetrics))
	r.Use(middleware.Actor)
	r.Get("/healthz", httpserver.Health(deps.checks))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handler.New(svc, log).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	relay := deps.relay(log, cfg.Outbox)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting billing server",
			"addr", cfg.Server.Addr,
			"storage", deps.storage,
			"numbering", cfg.Numbering,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("billing server stopped")
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	return g.Wait()
}
