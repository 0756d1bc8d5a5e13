package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ledger/internal/cache"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	cacheSweepEvery = time.Minute
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Long: `Open the ledger database and serve the account, transaction and report
commands over HTTP. The server listens on loopback unless --host says otherwise.`,
		RunE: runServe,
	}
	cmd.Flags().String("host", "127.0.0.1", "interface to listen on")
	cmd.Flags().Int("writes-per-minute", 120, "per-client limit on mutating requests (0 disables)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	writesPerMinute, _ := cmd.Flags().GetInt("writes-per-minute")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := cli.OpenStore(ctx, appCfg)
	if err != nil {
		return err
	}

	// A nil *amqp.Client must not become a non-nil Publisher.
	var publisher services.Publisher
	if client := cli.ConnectEvents(ctx, appCfg); client != nil {
		publisher = client
	}

	salary, _ := appCfg.Salary()
	reports := services.NewReportService(store, services.ReportOptions{
		CacheSize: appCfg.CacheSize,
		CacheTTL:  appCfg.CacheTTL,
		Salary:    salary,
	})
	caches := cache.NewManager()
	reports.RegisterCaches(caches)
	caches.StartCleanup(cacheSweepEvery)

	svc := services.NewLedgerService(store, reports, publisher)

	opts := apphttp.DefaultOptions()
	opts.WritesPerMinute = writesPerMinute
	addr := net.JoinHostPort(host, appCfg.Port)
	srv := apphttp.NewServer(addr, svc, reports, appLogger, opts)

	_, done := cli.GracefulShutdown(ctx, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := svc.Close(); err != nil {
			slog.Error("Ledger close error", log.FieldError, err)
		}
	})

	var g errgroup.Group
	g.Go(func() error {
		// A listen failure also triggers the shutdown path.
		defer cancel()
		appLogger.Info("Starting ledger server", "addr", addr, "env", appCfg.Env, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})

	err = g.Wait()
	<-done
	appLogger.Info("Server stopped gracefully")
	return err
}
