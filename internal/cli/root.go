// Package cli implements the offline worklog command: it loads work-log, document
// and ledger exports from disk into in-memory storage and runs the same reports as the API.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"worklog-platform/internal/config"
	"worklog-platform/internal/models"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/services"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

// Options are the input files and filters shared by every subcommand
type Options struct {
	WorkLogs  []string
	Documents []string
	Ledger    string
	RatesFile string
	Month     string
	Task      string
	LogLevel  string
}

// App holds the services a subcommand runs against
type App struct {
	Ingestion *services.IngestionService
	Reports   *services.ReportService
}

// NewRootCmd creates the top-level "worklog" command and registers all subcommands
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "worklog",
		Short:         "Forestry work-log KPIs, P&L and report exports from CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringSliceVarP(&opts.WorkLogs, "worklogs", "w", nil, "Work-log CSV exports to load (repeatable)")
	flags.StringSliceVar(&opts.Documents, "documents", nil, "JSON files holding an array of work-log documents (repeatable)")
	flags.StringVar(&opts.Ledger, "ledger", "", "Cost ledger CSV")
	flags.StringVar(&opts.RatesFile, "rates", "", "YAML rates file (hourly_wage, machine_rate, unit_prices)")
	flags.StringVarP(&opts.Month, "month", "m", "", "Month to report on (YYYY-MM)")
	flags.StringVarP(&opts.Task, "task", "t", "", "Task code filter (default: all tasks)")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		newKPICmd(opts),
		newPnLCmd(opts),
		newExportCmd(opts),
		newWorkLogsCmd(opts),
		newChartCmd(opts),
	)

	return root
}

// loadApp builds in-memory services and imports every input file named in opts
func loadApp(ctx context.Context, cmd *cobra.Command, opts *Options) (*App, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewStructuredLogger("worklog-cli", "1.0.0", level)
	logger.SetOutput(cmd.ErrOrStderr())

	rates := models.RateConfig{UnitPrices: map[string]float64{}}
	if opts.RatesFile != "" {
		if rates, err = config.LoadRates(opts.RatesFile); err != nil {
			return nil, err
		}
	}

	repo := repository.NewMemoryRepository()
	m := metrics.NewNop()
	app := &App{
		Ingestion: services.NewIngestionService(repo, services.DefaultBatchSize, logger, m),
		Reports:   services.NewReportService(repo, rates, logger, m),
	}

	for _, path := range opts.WorkLogs {
		if err := importFile(path, func(f *os.File) error {
			_, err := app.Ingestion.ImportWorkLogs(ctx, f, filepath.Base(path))
			return err
		}); err != nil {
			return nil, err
		}
	}

	for _, path := range opts.Documents {
		if err := importFile(path, func(f *os.File) error {
			var docs []map[string]interface{}
			if err := json.NewDecoder(f).Decode(&docs); err != nil {
				return fmt.Errorf("invalid document array: %w", err)
			}
			_, err := app.Ingestion.StoreDocuments(ctx, docs)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if opts.Ledger != "" {
		if err := importFile(opts.Ledger, func(f *os.File) error {
			_, err := app.Ingestion.ImportLedger(ctx, f, filepath.Base(opts.Ledger))
			return err
		}); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func importFile(path string, load func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
