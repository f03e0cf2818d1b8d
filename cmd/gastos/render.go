package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gastos/internal/core"
)

var (
	colorBorder    = lipgloss.Color("#575653")
	colorAccent    = lipgloss.Color("#3AA99F")
	colorText      = lipgloss.Color("#FFFCF0")
	colorMuted     = lipgloss.Color("#878580")
	colorProjected = lipgloss.Color("#4385BE")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Foreground(colorText).Padding(0, 1)
	projectedStyle = lipgloss.NewStyle().Foreground(colorProjected).Padding(0, 1)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderEntries draws one row per entry; projections are coloured.
func renderEntries(entries []core.ExpenseView) string {
	if len(entries) == 0 {
		return "\n" + mutedStyle.Render("  No expenses in the selected window.") + "\n"
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		origin := ""
		if e.IsProjection {
			origin = fmt.Sprintf("#%d", e.OriginID)
		}
		rows = append(rows, []string{
			fmt.Sprint(e.ID),
			e.Date.String(),
			core.FormatAmount(e.Amount),
			e.Currency,
			e.Description,
			e.Category,
			e.Frequency,
			origin,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("ID", "Fecha", "Monto", "Moneda", "Descripcion", "Categoria", "Frecuencia", "Origen").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case entries[row].IsProjection:
				return projectedStyle
			default:
				return cellStyle
			}
		})

	return "\n" + t.String() + "\n"
}

// renderSummary prints the totals block. entries < 0 hides the entry count.
func renderSummary(from, to core.Date, entries int, s core.Summary) string {
	rows := [][]string{
		{"Desde", from.String()},
		{"Hasta", to.String()},
	}
	if entries >= 0 {
		rows = append(rows, []string{"Entradas", fmt.Sprint(entries)})
	}
	rows = append(rows,
		[]string{"Total real", s.TotalReal.StringFixed(2)},
		[]string{"Total proyectado", s.TotalProjected.StringFixed(2)},
		[]string{"Total", s.Total.StringFixed(2)},
	)
	return renderKeyValues("TOTALES", rows)
}

func renderKeyValues(title string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Rows(rows...).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return headerStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}
