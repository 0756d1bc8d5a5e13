package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
)

var (
	cfgFile string
	version = "dev"

	v         = config.NewViper()
	appCfg    *config.Config
	appLogger *log.Logger

	rootCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Personal finance ledger",
		Long: `ledger keeps accounts and their transactions in a local SQLite database,
derives account balances on every write and reports monthly totals with a
fixed versus variable expense split.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ledger.yaml or $XDG_CONFIG_HOME/ledger/ledger.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cfg, err := cli.LoadAndValidateConfig(v, cfgFile)
	if err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	appCfg = cfg
	appLogger = logger
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ledger", version)
		},
	}
}
