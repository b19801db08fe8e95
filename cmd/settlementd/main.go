package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"zizyhub/observability/logging"
	telemetry "zizyhub/observability/otel"
	"zizyhub/services/settlement"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "settlementd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "services/settlement/config.yaml", "path to settlementd configuration")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	console := flag.Bool("console", false, "human readable log output")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ZIZY_ENV"))
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.SetupWith(logging.Options{Service: "settlementd", Env: env, Level: level, Console: *console})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "settlementd",
		Environment: env,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	cfg, err := settlement.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := settlement.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	store := settlement.NewStore(db)

	dispatcher, err := settlement.NewHTTPDispatcher(cfg.Dispatcher.Endpoint, cfg.DispatcherSecret(), cfg.Dispatcher.Timeout.Duration)
	if err != nil {
		return err
	}
	processor := settlement.NewProcessor(store,
		settlement.WithDispatcher(dispatcher),
		settlement.WithLogger(logger),
		settlement.WithPollInterval(cfg.PollInterval.Duration),
		settlement.WithMaxAttempts(cfg.MaxAttempts),
		settlement.WithBatchSize(cfg.BatchSize),
		settlement.WithBackoff(cfg.Backoff.Base.Duration, cfg.Backoff.Max.Duration),
		settlement.WithPaused(cfg.PauseOnStart),
	)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      settlement.NewAdminServer(processor, store, cfg.Admin.BearerToken),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return processor.Run(gctx) })
	g.Go(func() error {
		logger.Info("settlementd listening", slog.String("addr", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if dir := strings.TrimSpace(cfg.Reports.Dir); dir != "" {
		reporter := settlement.NewReporter(store, dir, logger)
		g.Go(func() error { return runReports(gctx, reporter, cfg.Reports.Interval.Duration, logger) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("settlementd stopped")
	return nil
}

// runReports exports each elapsed interval of settled jobs.
func runReports(ctx context.Context, reporter *settlement.Reporter, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	from := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			to := now.UTC()
			if _, err := reporter.Generate(ctx, from, to); err != nil {
				logger.Error("settlement report failed", slog.Any("error", err))
				continue
			}
			from = to
		}
	}
}
