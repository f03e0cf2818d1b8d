package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gastos/internal/export/xlsx"
	"gastos/internal/services"
	"gastos/internal/sheets/google"
)

var (
	flagExportTo  string
	flagExportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the combined report for the window to a workbook or Google Sheets",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportTo, "to", "xlsx", "Destination: xlsx or sheets")
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "Workbook path (xlsx), default gastos_<desde>_<hasta>.xlsx")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	from, to, err := window()
	if err != nil {
		return err
	}
	res, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	r, err := services.NewReportService(res.Store, nil, logger).Build(ctx, from, to)
	if err != nil {
		return err
	}

	switch flagExportTo {
	case "xlsx":
		path := flagExportOut
		if path == "" {
			path = xlsx.FileName(r)
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := xlsx.Write(f, r); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("\n  Wrote %d entries to %s\n", len(r.Entries), path)
	case "sheets":
		if !cfg.SheetsEnabled() {
			return fmt.Errorf("GOOGLE_SPREADSHEET_ID is not set")
		}
		exp, err := google.New(ctx, google.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		}, logger)
		if err != nil {
			return err
		}
		if err := exp.Export(ctx, r); err != nil {
			return err
		}
		fmt.Printf("\n  Wrote %d entries to sheet %q\n", len(r.Entries), cfg.GoogleSheetName)
	default:
		return fmt.Errorf("unknown export destination %q: want xlsx or sheets", flagExportTo)
	}
	return nil
}
