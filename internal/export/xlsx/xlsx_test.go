package xlsx

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"gastos/internal/core"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func sampleReport() core.Report {
	rent := core.Expense{
		ID: 1, Date: core.NewDate(2024, 1, 31), Amount: amount("1250.5"),
		Recurring: true, Frequency: "MENSUAL", Active: true,
		Description: "Alquiler", Currency: "EUR",
	}
	projected := core.ExpenseView{Expense: rent, IsProjection: true, OriginID: 1, OriginalDate: rent.Date}
	projected.Date = core.NewDate(2024, 3, 2)

	return core.Report{
		From: core.NewDate(2024, 1, 1),
		To:   core.NewDate(2024, 3, 31),
		Entries: []core.ExpenseView{
			projected,
			{Expense: core.Expense{ID: 2, Date: core.NewDate(2024, 2, 10), Description: "Sin importe", Active: true}},
			{Expense: rent},
		},
		Summary: core.Summary{
			TotalReal:      decimal.RequireFromString("1250.5"),
			TotalProjected: decimal.RequireFromString("1250.5"),
			Total:          decimal.RequireFromString("2501"),
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(EntriesSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("entries sheet has %d rows, want 4", len(rows))
	}
	if rows[1][0] != "2024-03-02" || rows[1][9] != "SI" || rows[1][10] != "1" || rows[1][11] != "2024-01-31" {
		t.Errorf("projection row = %v", rows[1])
	}
	if rows[2][1] != "" {
		t.Errorf("missing amount rendered as %q, want empty", rows[2][1])
	}
	if rows[3][1] != "1250.50" {
		t.Errorf("amount = %q, want 1250.50", rows[3][1])
	}

	total, err := f.GetCellValue(TotalsSheet, "B5")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if total != "2501.00" {
		t.Errorf("total cell = %q, want 2501.00", total)
	}
}

func TestReadExpenses_SkipsProjections(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := ReadExpenses(&buf)
	if err != nil {
		t.Fatalf("ReadExpenses() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadExpenses() returned %d, want 2 stored expenses", len(got))
	}
	if got[0].Amount.Valid || got[0].Description != "Sin importe" {
		t.Errorf("first expense = %+v", got[0])
	}
	rent := got[1]
	if !rent.Recurring || rent.Frequency != "MENSUAL" || !rent.Active || rent.Currency != "EUR" {
		t.Errorf("rent = %+v", rent)
	}
	if !rent.Amount.Decimal.Equal(decimal.RequireFromString("1250.5")) {
		t.Errorf("rent amount = %v", rent.Amount)
	}
}

func TestReadExpenses_BadRow(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", EntriesSheet)
	f.SetSheetRow(EntriesSheet, "A1", &header)
	f.SetSheetRow(EntriesSheet, "A2", &[]any{"31/01/2024", "10"})
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadExpenses(&buf); err == nil {
		t.Error("ReadExpenses() with bad date error = nil")
	}
}

func TestFileExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exp := &FileExporter{Dir: dir}
	r := sampleReport()

	if err := exp.Export(context.Background(), r); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "gastos_2024-01-01_2024-03-31.xlsx" {
		t.Errorf("export dir = %v, want only the workbook", entries)
	}
}

func TestReadExpenses_RoundTrip(t *testing.T) {
	stored := core.Expense{
		ID: 7, Date: core.NewDate(2024, 2, 10), Amount: amount("10.125"),
		Description: "Cafe", Category: "Oficina", Currency: "EUR", Notes: "por taza",
		Active: true, Extra: map[string]string{"proveedor": "acme"},
	}
	template := core.Expense{
		ID: 3, Date: core.NewDate(2024, 1, 31), Amount: amount("99.9"),
		Recurring: true, Frequency: "TRIMESTRAL", Active: false,
	}
	r := core.Report{
		From: core.NewDate(2024, 1, 1),
		To:   core.NewDate(2024, 3, 31),
		Entries: []core.ExpenseView{
			{Expense: stored},
			{Expense: template},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, r); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := ReadExpenses(&buf)
	if err != nil {
		t.Fatalf("ReadExpenses() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadExpenses() returned %d, want 2", len(got))
	}

	for i, want := range []core.Expense{stored, template} {
		e := got[i]
		if e.ID != want.ID {
			t.Errorf("entry %d ID = %d, want %d", i, e.ID, want.ID)
		}
		if !e.Date.Equal(want.Date.Time) {
			t.Errorf("entry %d Date = %s, want %s", i, e.Date, want.Date)
		}
		if !e.Amount.Valid || !e.Amount.Decimal.Equal(want.Amount.Decimal) {
			t.Errorf("entry %d Amount = %v, want %v", i, e.Amount, want.Amount)
		}
		if e.Description != want.Description || e.Category != want.Category ||
			e.Currency != want.Currency || e.Notes != want.Notes {
			t.Errorf("entry %d text fields = %+v, want %+v", i, e, want)
		}
		if e.Recurring != want.Recurring || e.Frequency != want.Frequency || e.Active != want.Active {
			t.Errorf("entry %d recurrence = %v/%q/%v, want %v/%q/%v", i,
				e.Recurring, e.Frequency, e.Active, want.Recurring, want.Frequency, want.Active)
		}
		if len(e.Extra) != len(want.Extra) || e.Extra["proveedor"] != want.Extra["proveedor"] {
			t.Errorf("entry %d Extra = %v, want %v", i, e.Extra, want.Extra)
		}
	}
}

func TestReadExpenses_BadIDOrExtra(t *testing.T) {
	tests := []struct {
		name string
		row  []any
	}{
		{name: "non-numeric id", row: []any{"2024-01-31", "10", "", "", "", "", "NO", "", "SI", "NO", "", "", "abc"}},
		{name: "negative id", row: []any{"2024-01-31", "10", "", "", "", "", "NO", "", "SI", "NO", "", "", "-4"}},
		{name: "extra not json", row: []any{"2024-01-31", "10", "", "", "", "", "NO", "", "SI", "NO", "", "", "1", "{oops"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := excelize.NewFile()
			f.SetSheetName("Sheet1", EntriesSheet)
			f.SetSheetRow(EntriesSheet, "A1", &header)
			f.SetSheetRow(EntriesSheet, "A2", &tt.row)
			var buf bytes.Buffer
			if _, err := f.WriteTo(&buf); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadExpenses(&buf); err == nil {
				t.Error("ReadExpenses() error = nil")
			}
		})
	}
}
