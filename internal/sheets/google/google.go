package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gastos/internal/core"
	"gastos/internal/log"
)

// Config selects the target spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

// Exporter mirrors a report into one sheet of a Google spreadsheet,
// replacing whatever the sheet held before.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates an exporter authenticated with service-account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	if sheetName == "" {
		sheetName = "Proyeccion"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// loadCredentials prefers inline JSON over a credentials file.
func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

func (e *Exporter) Name() string { return "sheets" }

// Export clears the target sheet and writes the report rows into it,
// creating the sheet first when the spreadsheet lacks it.
func (e *Exporter) Export(ctx context.Context, r core.Report) error {
	if err := e.ensureSheet(ctx); err != nil {
		return err
	}

	rng := fmt.Sprintf("'%s'!A:L", e.sheetName)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	rows := Rows(r)
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, fmt.Sprintf("'%s'!A1", e.sheetName),
		&gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", e.sheetName, err)
	}

	e.logger.InfoContext(ctx, "Report written to Google Sheets",
		log.FieldOperation, log.OpExport,
		"sheet", e.sheetName,
		"updated_rows", resp.UpdatedRows,
		log.FieldEntries, len(r.Entries))
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == e.sheetName {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: e.sheetName}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", e.sheetName, err)
	}
	e.logger.InfoContext(ctx, "Created sheet", "sheet", e.sheetName)
	return nil
}

var header = []any{
	"Fecha", "Monto", "Descripcion", "Categoria", "Moneda", "Recurrente",
	"Frecuencia", "Proyeccion", "GastoOrigenID", "FechaOriginal",
}

// Rows renders a report as sheet values: a header, one row per entry, a blank
// separator and the totals.
func Rows(r core.Report) [][]any {
	rows := make([][]any, 0, len(r.Entries)+6)
	rows = append(rows, slices.Clone(header))
	for _, e := range r.Entries {
		origin := ""
		if e.IsProjection {
			origin = strconv.FormatInt(e.OriginID, 10)
		}
		rows = append(rows, []any{
			e.Date.String(),
			core.FormatAmount(e.Amount),
			e.Description,
			e.Category,
			e.Currency,
			yesNo(e.Recurring),
			e.Frequency,
			yesNo(e.IsProjection),
			origin,
			e.OriginalDate.String(),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Desde", r.From.String(), "Hasta", r.To.String()},
		[]any{"Total real", r.Summary.TotalReal.StringFixed(2)},
		[]any{"Total proyectado", r.Summary.TotalProjected.StringFixed(2)},
		[]any{"Total", r.Summary.Total.StringFixed(2)},
	)
	return rows
}

func yesNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}
