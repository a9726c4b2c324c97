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
	"syscall"
	"time"

	"nftickets/cmd/internal/passphrase"
	"nftickets/config"
	"nftickets/core"
	"nftickets/core/events"
	"nftickets/crypto"
	"nftickets/observability/logging"
	telemetry "nftickets/observability/otel"
	"nftickets/rpc"
	"nftickets/storage"
	"nftickets/storage/history"
)

const envName = "NFT_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	exportSales := flag.String("export-sales", "", "Write the indexed sale history to this Parquet file and exit")
	flag.Parse()

	if path := *exportSales; path != "" {
		if err := export(*configFile, path); err != nil {
			fmt.Fprintf(os.Stderr, "nftd: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "nftd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := strings.TrimSpace(os.Getenv(envName))
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := logging.SetupWithOptions("nftd", env, logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Level:      level,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "nftd",
		Environment: env,
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
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var (
		store    *history.Store
		emitters []events.Emitter
	)
	if dsn := strings.TrimSpace(cfg.HistoryDB); dsn != "" {
		store, err = history.Open(dsn, logger)
		if err != nil {
			return fmt.Errorf("open history index: %w", err)
		}
		defer store.Close()
		emitters = append(emitters, store)
		logHistoryIndex(logger, dsn)
	}

	node, err := core.NewNode(db, core.Options{
		PlatformName:  cfg.Platform.Name,
		RentPerByte:   cfg.RentPerByte,
		PausedModules: cfg.PausedModules,
		EnableFaucet:  cfg.EnableFaucet,
		Logger:        logger,
		Emitters:      emitters,
	})
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	manager, err := loadManagerKey(cfg)
	if err != nil {
		return err
	}
	if err := node.BootstrapPlatform(ctx, manager.Address(), cfg.Platform.FeeBps); err != nil {
		return fmt.Errorf("bootstrap platform: %w", err)
	}
	logger.Info("platform ready",
		slog.String("platform", cfg.Platform.Name),
		slog.String("manager", manager.Address().String()),
		slog.String("network", cfg.NetworkName),
		slog.Uint64("height", node.Height()))

	server := rpc.NewServer(node, store, rpc.Config{
		AuthSecret:        cfg.RPC.AuthSecret,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		AllowedOrigins:    cfg.RPC.AllowedOrigins,
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		ShutdownTimeout:   time.Duration(cfg.RPC.ShutdownTimeout) * time.Second,
		Logger:            logger,
	})
	if err := server.ListenAndServe(ctx, cfg.ListenAddress); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("nftd stopped")
	return nil
}

// logHistoryIndex reports the enabled index. The DSN may embed database
// credentials, so it is masked.
func logHistoryIndex(logger *slog.Logger, dsn string) {
	logger.Info("history index enabled",
		logging.MaskField("history_db", dsn),
		logging.MaskField("driver", history.Driver(dsn)))
}

func export(configFile, path string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dsn := strings.TrimSpace(cfg.HistoryDB)
	if dsn == "" {
		return errors.New("HistoryDB is not configured")
	}
	logger := logging.Setup("nftd", strings.TrimSpace(os.Getenv(envName)))
	store, err := history.Open(dsn, logger)
	if err != nil {
		return fmt.Errorf("open history index: %w", err)
	}
	defer store.Close()
	rows, err := store.ExportSales(context.Background(), path)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d sales to %s\n", rows, path)
	return nil
}

func loadManagerKey(cfg *config.Config) (*crypto.PrivateKey, error) {
	pass := ""
	if env := strings.TrimSpace(cfg.Platform.PassphraseEnv); env != "" {
		var err error
		pass, err = passphrase.NewSource(env, "manager keystore").Get()
		if err != nil {
			return nil, err
		}
	}
	key, err := crypto.LoadFromKeystore(cfg.Platform.ManagerKeystore, pass)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("manager keystore %s not found", cfg.Platform.ManagerKeystore)
		}
		return nil, fmt.Errorf("unlock manager keystore: %w", err)
	}
	return key, nil
}
