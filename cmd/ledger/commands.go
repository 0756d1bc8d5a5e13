package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version and seed
the default expense categories. Running it again changes nothing.`,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	dbPath, err := appCfg.ResolveDBPath()
	if err != nil {
		return err
	}

	if status {
		version, dirty, err := storage.MigrationStatus(dbPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database: %s\nschema version: %d\ndirty: %t\n", dbPath, version, dirty)
		return nil
	}

	slog.Info("Starting database migration", "db_path", dbPath, log.FieldOperation, log.OpMigrate)
	store, err := cli.OpenStore(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fmt.Fprintln(cmd.OutOrStdout(), cli.SuccessStyle.Render("Schema is up to date: "+dbPath))
	return nil
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete and recreate the ledger database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("reset deletes every account and transaction; pass --yes to confirm")
			}
			dbPath, err := appCfg.ResolveDBPath()
			if err != nil {
				return err
			}
			store, err := storage.Reset(cmd.Context(), dbPath, storage.Options{DeletePolicy: appCfg.DeletePolicy()})
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Fprintln(cmd.OutOrStdout(), cli.WarningStyle.Render("Ledger reset: "+dbPath))
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deletion of all data")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the monthly balance and fixed/variable split",
		RunE:  runReport,
	}
	now := time.Now()
	cmd.Flags().Int("year", now.Year(), "report year")
	cmd.Flags().Int("month", int(now.Month()), "report month (1-12)")
	cmd.Flags().String("salary", "", "monthly salary for the salary analysis (default: monthly_salary from config)")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	salaryFlag, _ := cmd.Flags().GetString("salary")

	period, err := core.NewPeriod(year, month)
	if err != nil {
		return err
	}
	var salary core.Money
	if salaryFlag != "" {
		if salary, err = core.ParseMoney(salaryFlag); err != nil {
			return err
		}
	} else if configured, ok := appCfg.Salary(); ok {
		salary = configured
	}

	ctx := cmd.Context()
	store, err := cli.OpenStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reports := services.NewReportService(store, services.ReportOptions{Salary: salary})
	out := cmd.OutOrStdout()

	mb, err := reports.MonthlyBalance(ctx, period)
	if err != nil {
		return err
	}
	if err := cli.RenderMonthlyBalance(out, mb); err != nil {
		return err
	}
	fmt.Fprintln(out)

	split, err := reports.FixedVsVariable(ctx, period)
	if err != nil {
		return err
	}
	if err := cli.RenderSplit(out, split); err != nil {
		return err
	}

	if salary.Cents <= 0 {
		return nil
	}
	fmt.Fprintln(out)
	analysis, err := reports.SalaryAnalysis(ctx, period, salary)
	if err != nil {
		return err
	}
	return cli.RenderSalaryAnalysis(out, analysis)
}

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or classify expense categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List expense categories and their classification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := cli.OpenStore(cmd.Context(), appCfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cats, err := store.ListExpenseCategories(cmd.Context())
			if err != nil {
				return err
			}
			return cli.RenderCategories(cmd.OutOrStdout(), cats)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <category> <fixed|variable>",
		Short: "Classify an expense category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := cli.OpenStore(ctx, appCfg)
			if err != nil {
				return err
			}

			var publisher services.Publisher
			if client := cli.ConnectEvents(ctx, appCfg); client != nil {
				publisher = client
			}
			svc := services.NewLedgerService(store, nil, publisher)
			defer func() { _ = svc.Close() }()

			if err := svc.ClassifyCategory(ctx, args[0], core.Classification(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.SuccessStyle.Render(fmt.Sprintf("%s is now %s", args[0], args[1])))
			return nil
		},
	})

	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Tail ledger change events from the broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !appCfg.EventsEnabled() {
				return errors.New("change events are disabled; set amqp.url or LEDGER_AMQP_URL")
			}
			ctx := cmd.Context()
			client, err := amqp.NewClient(ctx, appCfg.AMQPURL, appCfg.AMQPExchange, appCfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			err = client.ConsumeLedgerEvents(ctx, func(_ context.Context, e *amqp.LedgerEvent) error {
				line := fmt.Sprintf("%s  %-28s id=%d", e.Timestamp.Format(time.RFC3339), e.Type(), e.ID)
				if e.Key != "" {
					line += " key=" + e.Key
				}
				if len(e.AccountIDs) > 0 {
					line += fmt.Sprintf(" accounts=%v", e.AccountIDs)
				}
				_, werr := fmt.Fprintln(out, line)
				return werr
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
