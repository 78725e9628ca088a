package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"fortunex/config"
	"fortunex/core"
	"fortunex/core/events"
	"fortunex/core/genesis"
	"fortunex/native/lottery"
	"fortunex/observability/logging"
	fxotel "fortunex/observability/otel"
	"fortunex/rpc"
	"fortunex/services/archive"
	"fortunex/services/crank"
	"fortunex/storage"
)

const serviceName = "fortunexd"

func main() {
	configFile := flag.String("config", "./fortunex.toml", "Path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("FORTUNEX_ENV")); override != "" {
		env = override
	}
	logOpts := []logging.Option{logging.WithLevel(cfg.Log.Level)}
	if strings.TrimSpace(cfg.Log.File) != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	logger, logCloser := logging.Setup(serviceName, env, logOpts...)
	defer logCloser.Close()

	headers := fxotel.MergeHeaders(cfg.Telemetry.Headers, fxotel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")))
	shutdownTelemetry, err := fxotel.Init(ctx, fxotel.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	seeds, err := seedSource(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var (
		emitters []events.Emitter
		store    *archive.Store
	)
	if cfg.Archive.Enabled {
		gdb, err := archive.Open(cfg.ArchiveDSN())
		if err != nil {
			return err
		}
		store, err = archive.NewStore(gdb, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		emitters = append(emitters, store)
	}

	node, err := core.NewNode(db,
		core.WithLogger(logger),
		core.WithSeedSource(seeds),
		core.WithEmitters(emitters...),
	)
	if err != nil {
		return fmt.Errorf("open node: %w", err)
	}
	if err := bootstrap(node, cfg, logger); err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Crank.Enabled {
		operator, err := crankOperator(cfg)
		if err != nil {
			return err
		}
		keeper, err := crank.New(crank.Config{
			Logger:                  logger,
			Node:                    node,
			Operator:                operator,
			Interval:                cfg.Crank.Interval.Duration,
			MaxSettlementsPerSecond: cfg.Crank.MaxSettlementsPerSecond,
			Rollover:                cfg.Crank.Rollover,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			keeper.Run(ctx)
		}()
	}

	if strings.TrimSpace(cfg.RPC.ListenAddress) == "" {
		logger.Info("rpc disabled")
		<-ctx.Done()
		wg.Wait()
		return nil
	}
	rpcCfg := rpc.Config{
		Node:               node,
		Logger:             logger,
		ListenAddress:      cfg.RPC.ListenAddress,
		ReadTimeout:        cfg.RPC.ReadTimeout.Duration,
		WriteTimeout:       cfg.RPC.WriteTimeout.Duration,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		TrustProxyHeaders:  cfg.RPC.TrustProxyHeaders,
	}
	if store != nil {
		rpcCfg.Archive = store
	}
	server, err := rpc.New(rpcCfg)
	if err != nil {
		return err
	}
	serveErr := server.Serve(ctx)
	wg.Wait()
	logger.Info("shutdown complete")
	return serveErr
}

// seedSource picks the draw entropy source from config.
func seedSource(cfg *config.Config) (lottery.SeedSource, error) {
	switch cfg.Lottery.SeedSource {
	case "", "slot":
		return lottery.SlotSeedSource{}, nil
	case "beacon":
		key, err := cfg.BeaconKeyBytes()
		if err != nil {
			return nil, fmt.Errorf("beacon key: %w", err)
		}
		return lottery.BeaconSeedSource{Beacon: lottery.KeyedBeacon(key)}, nil
	default:
		return nil, fmt.Errorf("unknown seed source %q", cfg.Lottery.SeedSource)
	}
}

// crankOperator resolves the keeper identity. Without an operator the zero
// identity is recorded as settler.
func crankOperator(cfg *config.Config) ([20]byte, error) {
	if strings.TrimSpace(cfg.Crank.Operator) == "" {
		return [20]byte{}, nil
	}
	return cfg.OperatorAddress()
}

// bootstrap applies the genesis file to an empty store.
func bootstrap(node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := node.Registry(); err == nil {
		return nil
	} else if !errors.Is(err, lottery.ErrRegistryNotFound) {
		return err
	}
	path := strings.TrimSpace(cfg.GenesisFile)
	if path == "" {
		logger.Warn("no registry and no genesis file configured; waiting for InitRegistry")
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("genesis file missing; starting without registry", slog.String("path", path))
			return nil
		}
		return err
	}
	if _, err := node.Bootstrap(spec); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	return nil
}
