// Motorqcd is the motor and gear quality-control daemon.
//
// It serves the record API, runs exports and, when enabled, the upload relay
// that stores exported CSV files.
//
// Configuration is read from ~/.config/motorqc/config.yaml and MOTORQC_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	motorqcd
//
//	# Use a specific config file
//	motorqcd -config /etc/motorqc/config.yaml
//
//	# Configure via environment
//	MOTORQC_SERVER_PORT=8080 MOTORQC_RELAY_ENABLED=true motorqcd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/audio"
	"github.com/fyrsmithlabs/motorqc/internal/config"
	"github.com/fyrsmithlabs/motorqc/internal/export"
	qchttp "github.com/fyrsmithlabs/motorqc/internal/http"
	"github.com/fyrsmithlabs/motorqc/internal/logging"
	"github.com/fyrsmithlabs/motorqc/internal/relay"
	"github.com/fyrsmithlabs/motorqc/internal/store"
	"github.com/fyrsmithlabs/motorqc/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/motorqc/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  motorqcd           Start the motorqc daemon\n")
			fmt.Fprintf(os.Stderr, "  motorqcd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("motorqcd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes telemetry and logger
//  3. Opens the record store and, optionally, its file watcher
//  4. Builds export targets, the audio store and the relay
//  5. Serves HTTP until ctx is done, then shuts down gracefully
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrap, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromFileConfig(cfg.Telemetry, version), bootstrap)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			bootstrap.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting motorqcd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("relay_enabled", cfg.Relay.Enabled),
		zap.Bool("telemetry_enabled", tel.Enabled()))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	srv, err := qchttp.NewServer(qchttp.Deps{
		Store:   deps.store,
		Exports: deps.exports,
		Audio:   deps.audio,
		Relay:   deps.relay,
		Logger:  logger,
	}, &qchttp.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if cfg.Store.Watch {
		go func() {
			if err := store.Watch(ctx, deps.store, deps.storePath, logger.Underlying().Named("watch")); err != nil {
				logger.Error(ctx, "record watcher stopped", zap.Error(err))
			}
		}()
	}

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", cfg.Server.Addr())),
		zap.Strings("export_targets", deps.exports.Names()),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// initLogger builds the structured logger from the logging section.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg, err := logging.FromFileConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(logCfg, global.GetLoggerProvider())
}

// dependencies holds the components behind the API.
type dependencies struct {
	store     *store.Store
	storePath string
	exports   *export.Registry
	audio     *audio.Store
	relay     *relay.Relay

	closers []func() error
}

// Close releases every resource in reverse order of acquisition.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}
	zl := logger.Underlying()

	storePath, err := config.ExpandPath(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	deps.storePath = storePath

	persister, err := newPersister(ctx, cfg.Store.Backend, storePath, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.store, err = store.New(ctx, persister, zl.Named("store"))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("opening record store: %w", err)
	}
	logger.Info(ctx, "record store ready",
		zap.String("backend", cfg.Store.Backend),
		zap.String("path", storePath),
		zap.Int("records", deps.store.Len()))

	exportDir, err := config.ExpandPath(cfg.Export.Dir)
	if err != nil {
		deps.Close()
		return nil, err
	}
	gateway, err := export.NewGateway(export.GatewayConfig{
		BaseURL:  cfg.Export.BaseURL,
		Endpoint: cfg.Export.Endpoint,
		Timeout:  cfg.Export.Timeout.Duration(),
	}, zl.Named("export"))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating export gateway: %w", err)
	}
	deps.exports = export.NewRegistry(
		export.NewCSVFileTarget(exportDir, zl.Named("export")),
		export.NewExcelTarget(exportDir, zl.Named("export")),
		gateway,
	)
	logger.Info(ctx, "export gateway configured", zap.String("url", gateway.URL()))

	audioDir, err := config.ExpandPath(cfg.Audio.Dir)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.audio = audio.NewStore(audioDir, cfg.Audio.MaxSizeBytes)

	if cfg.Relay.Enabled {
		objects, err := newObjectStore(cfg.Relay, deps, logger)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.relay, err = relay.New(objects, zl.Named("relay"))
		if err != nil {
			deps.Close()
			return nil, err
		}
		logger.Info(ctx, "upload relay enabled",
			zap.String("backend", cfg.Relay.Backend),
			zap.String("path", relay.Path))
	}

	return deps, nil
}

func newPersister(ctx context.Context, backend, path string, deps *dependencies) (store.Persister, error) {
	switch backend {
	case "sqlite":
		p, err := store.NewSQLitePersister(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		deps.closers = append(deps.closers, p.Close)
		return p, nil
	default:
		return store.NewFilePersister(path), nil
	}
}

func newObjectStore(cfg config.RelayConfig, deps *dependencies, logger *logging.Logger) (relay.ObjectStore, error) {
	switch cfg.Backend {
	case "nats":
		nc, err := nats.Connect(cfg.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(1*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
		}
		deps.closers = append(deps.closers, func() error {
			nc.Close()
			return nil
		})
		logger.Info(context.Background(), "connected to NATS", zap.String("url", cfg.NATSURL))

		s, err := relay.NewNATSStore(nc, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("opening object store %s: %w", cfg.Bucket, err)
		}
		return s, nil

	case "forward":
		var opts []relay.ForwardOption
		if cfg.ForwardAPIKey.IsSet() {
			opts = append(opts, relay.WithAPIKey(cfg.ForwardAPIKey.Value()))
		}
		logger.Info(context.Background(), "forwarding uploads",
			zap.String("url", cfg.ForwardURL),
			logging.Secret("api_key", cfg.ForwardAPIKey))
		return relay.NewForwardStore(cfg.ForwardURL, cfg.Timeout.Duration(), opts...), nil

	default:
		dir, err := config.ExpandPath(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return relay.NewDirStore(dir), nil
	}
}
