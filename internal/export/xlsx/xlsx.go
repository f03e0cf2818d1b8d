// Package xlsx renders reports as Excel workbooks and reads expenses back
// from the entries sheet.
package xlsx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gastos/internal/core"
	"gastos/internal/log"
)

const (
	EntriesSheet = "Gastos"
	TotalsSheet  = "Totales"

	yes = "SI"
	no  = "NO"
)

var header = []any{
	"Fecha", "Monto", "Descripcion", "Categoria", "Moneda", "Notas",
	"Recurrente", "Frecuencia", "Activo", "Proyeccion", "GastoOrigenID", "FechaOriginal",
	"ID", "Extra",
}

const (
	colProjection = 9
	colID         = 12
	colExtra      = 13
)

// Write renders r as a workbook with an entries sheet and a totals sheet.
func Write(w io.Writer, r core.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", EntriesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeEntries(f, r.Entries); err != nil {
		return err
	}
	if err := writeTotals(f, r); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeEntries(f *excelize.File, entries []core.ExpenseView) error {
	if err := f.SetSheetRow(EntriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		f.SetRowStyle(EntriesSheet, 1, 1, bold)
	}

	for i, e := range entries {
		origin := ""
		if e.IsProjection {
			origin = strconv.FormatInt(e.OriginID, 10)
		}
		extra, err := encodeExtra(e.Extra)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		row := []any{
			e.Date.String(),
			core.FormatAmount(e.Amount),
			e.Description,
			e.Category,
			e.Currency,
			e.Notes,
			flag(e.Recurring),
			e.Frequency,
			flag(e.Active),
			flag(e.IsProjection),
			origin,
			e.OriginalDate.String(),
			strconv.FormatInt(e.ID, 10),
			extra,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(EntriesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.SetColWidth(EntriesSheet, "A", "N", 16)
}

func writeTotals(f *excelize.File, r core.Report) error {
	if _, err := f.NewSheet(TotalsSheet); err != nil {
		return fmt.Errorf("create totals sheet: %w", err)
	}
	rows := [][]any{
		{"Desde", r.From.String()},
		{"Hasta", r.To.String()},
		{"Total real", r.Summary.TotalReal.StringFixed(2)},
		{"Total proyectado", r.Summary.TotalProjected.StringFixed(2)},
		{"Total", r.Summary.Total.StringFixed(2)},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(TotalsSheet, "A"+strconv.Itoa(i+1), &row); err != nil {
			return fmt.Errorf("write totals: %w", err)
		}
	}
	return f.SetColWidth(TotalsSheet, "A", "B", 20)
}

// ReadExpenses parses the entries sheet of a workbook. Projection rows are
// skipped: only stored expenses are returned, with the ID they were exported
// under (zero when the ID cell is blank).
func ReadExpenses(r io.Reader) ([]core.Expense, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(EntriesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", EntriesSheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var out []core.Expense
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		cell := func(col int) string {
			if col < len(row) {
				return strings.TrimSpace(row[col])
			}
			return ""
		}
		if cell(colProjection) == yes {
			continue
		}

		date, err := core.ParseDate(cell(0))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		amount, err := core.ParseAmount(cell(1))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		var id int64
		if v := cell(colID); v != "" {
			if id, err = strconv.ParseInt(v, 10, 64); err != nil || id < 0 {
				return nil, fmt.Errorf("row %d: invalid id %q", line, v)
			}
		}
		var extra map[string]string
		if v := cell(colExtra); v != "" {
			if err := json.Unmarshal([]byte(v), &extra); err != nil {
				return nil, fmt.Errorf("row %d: invalid extra: %w", line, err)
			}
		}
		e := core.Expense{
			ID:          id,
			Date:        date,
			Amount:      amount,
			Description: cell(2),
			Category:    cell(3),
			Currency:    cell(4),
			Notes:       cell(5),
			Recurring:   cell(6) == yes,
			Frequency:   cell(7),
			Active:      cell(8) != no,
			Extra:       extra,
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// FileExporter writes each report to Dir as gastos_<desde>_<hasta>.xlsx.
type FileExporter struct {
	Dir    string
	Logger *log.Logger
}

func (e *FileExporter) Name() string { return "xlsx" }

func (e *FileExporter) Export(ctx context.Context, r core.Report) error {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.Dir, FileName(r))

	// Write to a temp file first so readers never see a partial workbook.
	tmp, err := os.CreateTemp(e.Dir, ".gastos-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move workbook into place: %w", err)
	}

	if e.Logger != nil {
		e.Logger.WithComponent(log.ComponentExport).InfoContext(ctx, "Report exported",
			log.FieldOperation, log.OpExport, "path", path, log.FieldEntries, len(r.Entries))
	}
	return nil
}

// FileName is the download and export name for a report workbook.
func FileName(r core.Report) string {
	return fmt.Sprintf("gastos_%s_%s.xlsx", r.From, r.To)
}

func flag(b bool) string {
	if b {
		return yes
	}
	return no
}

func encodeExtra(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode extra: %w", err)
	}
	return string(b), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
