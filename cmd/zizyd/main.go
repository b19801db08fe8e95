package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"zizyhub/cmd/internal/secret"
	"zizyhub/config"
	"zizyhub/core"
	"zizyhub/core/genesis"
	nativecommon "zizyhub/native/common"
	"zizyhub/observability/logging"
	telemetry "zizyhub/observability/otel"
	"zizyhub/rpc"
	"zizyhub/services/settlement"
	"zizyhub/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zizyd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to the genesis YAML (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.SetupWith(logging.Options{
		Service:    "zizyd",
		Env:        cfg.Environment,
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "zizyd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	jwtSecret, err := secret.NewSource("API signing secret", cfg.JWTSecret).Get()
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	node, err := core.NewNode(db,
		core.WithLogger(logger),
		core.WithQuota(nativecommon.Quota{
			MaxRequestsPerWindow: cfg.Quota.MaxRequestsPerWindow,
			WindowSeconds:        cfg.Quota.WindowSeconds,
		}),
		core.WithPauses(cfg.Pauses.Modules()),
		core.WithEventHistory(cfg.EventHistory),
	)
	if err != nil {
		db.Close()
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = cfg.GenesisFile
	}
	spec, err := genesis.LoadGenesisSpec(genesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	if spec.ChainID != cfg.ChainID {
		return fmt.Errorf("genesis chain id %d does not match configured %d", spec.ChainID, cfg.ChainID)
	}
	if err := node.InitGenesis(spec); err != nil {
		return err
	}

	server, err := rpc.NewServer(node, rpc.ServerConfig{
		Auth: rpc.AuthConfig{
			HMACSecret: jwtSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		ReadTimeout:    time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.RPCWriteTimeout) * time.Second,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create rpc server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Outbox.Enabled {
		jobs, err := settlement.Open(cfg.Outbox.Driver, cfg.Outbox.DSN)
		if err != nil {
			return fmt.Errorf("open outbox: %w", err)
		}
		logger.Info("settlement outbox enabled",
			slog.String("driver", cfg.Outbox.Driver),
			slog.String("dsn", logging.MaskDSN(cfg.Outbox.DSN)))
		outbox := settlement.NewOutboxWriter(settlement.NewStore(jobs), node, logger)
		g.Go(func() error { return outbox.Run(gctx) })
	}
	g.Go(func() error {
		return server.Serve(gctx, cfg.RPCAddress, time.Duration(cfg.RPCShutdownTimeout)*time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("zizyd stopped")
	return nil
}
