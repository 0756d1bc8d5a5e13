// Package cli provides the initialization steps shared by the ledger
// subcommands: logging, configuration, store and event wiring.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"ledger/internal/amqp"
	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// SetupLogger builds the application logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     lvl,
		Format:    format,
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig reads .env, the optional config file and the
// environment, then validates the result.
func LoadAndValidateConfig(v *viper.Viper, configFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := config.ReadFile(v, configFile); err != nil {
		return nil, err
	}
	cfg := config.Load(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the ledger database selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, dbPath, storage.Options{DeletePolicy: cfg.DeletePolicy()})
	if err != nil {
		return nil, fmt.Errorf("open ledger at %s: %w", dbPath, err)
	}
	return store, nil
}

// ConnectEvents dials the broker when events are enabled. It returns nil
// when events are off or the broker is unreachable; the ledger then runs
// without events.
func ConnectEvents(ctx context.Context, cfg *config.Config) *amqp.Client {
	if !cfg.EventsEnabled() {
		slog.InfoContext(ctx, "Change events disabled (no AMQP URL configured)")
		return nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.WarnContext(ctx, "AMQP unavailable, continuing without change events", "error", err)
		return nil
	}
	slog.InfoContext(ctx, "Connected to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM. cleanup
// runs once after the signal, bounded by timeout.
func GracefulShutdown(parent context.Context, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Shutdown signal received", "signal", sig.String())
		case <-parent.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			slog.Warn("Shutdown timeout reached")
			return
		}
		slog.Info("Shutdown complete")
	}()

	return ctx, done
}
