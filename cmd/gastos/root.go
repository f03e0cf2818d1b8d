package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/export/xlsx"
	"gastos/internal/log"
	"gastos/internal/sheets/google"
	"gastos/internal/worker"
)

var (
	flagDesde string
	flagHasta string
	flagJSON  bool

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:          "gastos",
	Short:        "Recurring expense projections",
	Long:         "Combine stored expenses with projected occurrences of recurring ones, serve them over HTTP and export them.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		c, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		cfg = c
		logger = cli.SetupLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDesde, "desde", "", "Window start (YYYY-MM-DD), default first day of the current month")
	rootCmd.PersistentFlags().StringVar(&flagHasta, "hasta", "", "Window end (YYYY-MM-DD), default last day of the current month")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of a table")
}

// window resolves --desde/--hasta against the current month in the configured zone.
func window() (core.Date, core.Date, error) {
	today := core.DateOf(time.Now().In(cfg.Location()))
	first := core.NewDate(today.Year(), int(today.Month()), 1)
	from, to := first, first.AddDate(0, 1, -1)

	if v := strings.TrimSpace(flagDesde); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("--desde: %w", err)
		}
		from = d
	}
	if v := strings.TrimSpace(flagHasta); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("--hasta: %w", err)
		}
		to = d
	}
	if from.After(to.Time) {
		return core.Date{}, core.Date{}, fmt.Errorf("--desde %s is after --hasta %s", from, to)
	}
	return from, to, nil
}

// requirePersistentStore rejects write commands on the memory backend, whose
// contents vanish when the command exits.
func requirePersistentStore(command string) error {
	if backend.BackendType(cfg.DataBackend) == backend.MemoryBackend {
		return fmt.Errorf("%s: DATA_BACKEND=memory does not keep writes after the command exits; set DATA_BACKEND=sqlite", command)
	}
	return nil
}

func openStore(ctx context.Context) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.Create(ctx, bc, logger)
}

// openAMQP returns nil when messaging is not configured.
func openAMQP() (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	return amqp.NewClient(amqp.Config{
		URL:          cfg.AMQPURL,
		Exchange:     cfg.AMQPExchange,
		ChangesQueue: cfg.AMQPChangesQueue,
		SummaryQueue: cfg.AMQPSummaryQueue,
	}, logger)
}

// exporters lists the report sinks enabled by configuration.
func exporters(ctx context.Context) ([]worker.Exporter, error) {
	var out []worker.Exporter
	if cfg.ExportDir != "" {
		out = append(out, &xlsx.FileExporter{Dir: cfg.ExportDir, Logger: logger})
	}
	if cfg.SheetsEnabled() {
		sheets, err := google.New(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		out = append(out, sheets)
	}
	return out, nil
}
