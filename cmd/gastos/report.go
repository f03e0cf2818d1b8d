package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gastos/internal/core"
	"gastos/internal/services"
	"gastos/internal/storage"
)

var flagProjectedOnly bool

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "List every stored expense plus projections inside the window",
	RunE:  runProject,
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Real, projected and overall totals for the window",
	RunE:  runTotals,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend, schema version and expense counts",
	RunE:  runStatus,
}

func init() {
	projectCmd.Flags().BoolVar(&flagProjectedOnly, "proyectados", false, "Only show projected entries")
	rootCmd.AddCommand(projectCmd, totalsCmd, statusCmd)
}

func runProject(cmd *cobra.Command, _ []string) error {
	from, to, err := window()
	if err != nil {
		return err
	}
	res, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Cleanup()

	stored, err := res.Store.ListAllExpenses(cmd.Context())
	if err != nil {
		return err
	}
	entries := services.Combine(stored, from, to)
	if flagProjectedOnly {
		entries = core.Report{Entries: entries}.Projections()
	}
	r := core.Report{From: from, To: to, Entries: entries, Summary: services.Summarize(entries)}

	if flagJSON {
		return printJSON(r)
	}
	fmt.Print(renderEntries(r.Entries))
	fmt.Print(renderSummary(r.From, r.To, len(r.Entries), r.Summary))
	return nil
}

func runTotals(cmd *cobra.Command, _ []string) error {
	from, to, err := window()
	if err != nil {
		return err
	}
	res, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer res.Cleanup()

	stored, err := res.Store.ListAllExpenses(cmd.Context())
	if err != nil {
		return err
	}
	summary := services.Totals(stored, from, to)

	if flagJSON {
		return printJSON(map[string]any{"desde": from, "hasta": to, "totales": summary})
	}
	fmt.Print(renderSummary(from, to, -1, summary))
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	res, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	rows := [][]string{{"Backend", cfg.DataBackend}}
	if cfg.DataBackend == "sqlite" {
		version, dirty, err := storage.SchemaVersion(cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		rows = append(rows,
			[]string{"Database", cfg.SQLiteDBPath},
			[]string{"Schema version", fmt.Sprintf("%d (dirty: %t)", version, dirty)})
	}

	all, err := res.Store.ListAllExpenses(ctx)
	if err != nil {
		return err
	}
	templates, err := res.Store.ListRecurringTemplates(ctx, core.NewDate(9999, 12, 31))
	if err != nil {
		return err
	}
	rows = append(rows,
		[]string{"Expenses", fmt.Sprint(len(all))},
		[]string{"Active recurring", fmt.Sprint(len(templates))})

	fmt.Print(renderKeyValues("STATUS", rows))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
