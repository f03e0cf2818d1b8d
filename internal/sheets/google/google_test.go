package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gastos/internal/core"
)

type recordedCall struct {
	method string
	path   string
	body   string
}

type fakeSheetsAPI struct {
	mu     sync.Mutex
	calls  []recordedCall
	sheets []string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		type props struct {
			Title string `json:"title"`
		}
		type sheet struct {
			Properties props `json:"properties"`
		}
		resp := struct {
			Sheets []sheet `json:"sheets"`
		}{}
		for _, s := range f.sheets {
			resp.Sheets = append(resp.Sheets, sheet{Properties: props{Title: s}})
		}
		json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"), strings.HasSuffix(r.URL.Path, ":clear"):
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		io.WriteString(w, `{"updatedRows": 7}`)
	default:
		http.Error(w, "unexpected call", http.StatusNotFound)
	}
}

func newTestExporter(t *testing.T, api *fakeSheetsAPI) *Exporter {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-123", "Proyeccion", nil)
}

func sampleReport() core.Report {
	stored := core.Expense{
		ID: 5, Date: core.NewDate(2024, 1, 31), Recurring: true, Frequency: "MENSUAL", Active: true,
		Amount: decimal.NewNullDecimal(decimal.RequireFromString("40")), Description: "Hosting",
	}
	projected := core.ExpenseView{Expense: stored, IsProjection: true, OriginID: 5, OriginalDate: stored.Date}
	projected.Date = core.NewDate(2024, 3, 2)
	return core.Report{
		From:    core.NewDate(2024, 1, 1),
		To:      core.NewDate(2024, 3, 31),
		Entries: []core.ExpenseView{projected, {Expense: stored}},
		Summary: core.Summary{
			TotalReal:      decimal.RequireFromString("40"),
			TotalProjected: decimal.RequireFromString("40"),
			Total:          decimal.RequireFromString("80"),
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleReport())

	if len(rows) != 8 {
		t.Fatalf("Rows() returned %d rows, want 8", len(rows))
	}
	if rows[0][0] != "Fecha" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2024-03-02" || rows[1][7] != "SI" || rows[1][8] != "5" || rows[1][9] != "2024-01-31" {
		t.Errorf("projection row = %v", rows[1])
	}
	if rows[2][7] != "NO" || rows[2][8] != "" {
		t.Errorf("stored row = %v", rows[2])
	}
	if len(rows[3]) != 0 {
		t.Errorf("separator row = %v, want empty", rows[3])
	}
	if last := rows[7]; last[0] != "Total" || last[1] != "80.00" {
		t.Errorf("total row = %v", last)
	}
}

func TestExporter_CreatesMissingSheet(t *testing.T) {
	api := &fakeSheetsAPI{sheets: []string{"Hoja 1"}}
	exp := newTestExporter(t, api)

	if err := exp.Export(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var kinds []string
	for _, c := range api.calls {
		switch {
		case c.method == http.MethodGet:
			kinds = append(kinds, "get")
		case strings.HasSuffix(c.path, ":batchUpdate"):
			kinds = append(kinds, "add")
			if !strings.Contains(c.body, `"title":"Proyeccion"`) {
				t.Errorf("addSheet body = %s", c.body)
			}
		case strings.HasSuffix(c.path, ":clear"):
			kinds = append(kinds, "clear")
		case c.method == http.MethodPut:
			kinds = append(kinds, "update")
			if !strings.Contains(c.body, `"2024-03-02"`) || !strings.Contains(c.body, `"80.00"`) {
				t.Errorf("update body missing report values: %s", c.body)
			}
		}
	}
	if got := strings.Join(kinds, ","); got != "get,add,clear,update" {
		t.Errorf("API calls = %s, want get,add,clear,update", got)
	}
}

func TestExporter_ExistingSheet(t *testing.T) {
	api := &fakeSheetsAPI{sheets: []string{"Proyeccion"}}
	exp := newTestExporter(t, api)

	if err := exp.Export(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, c := range api.calls {
		if strings.HasSuffix(c.path, ":batchUpdate") {
			t.Error("sheet was re-created although it exists")
		}
	}
	if len(api.calls) != 3 {
		t.Errorf("API calls = %d, want 3", len(api.calls))
	}
}

func TestNew_MissingConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing spreadsheet", cfg: Config{ServiceAccountJSON: "{}"}},
		{name: "missing credentials", cfg: Config{SpreadsheetID: "abc"}},
		{name: "unreadable credentials file", cfg: Config{SpreadsheetID: "abc", ServiceAccountFile: "/non/existent.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), tt.cfg, nil); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}
