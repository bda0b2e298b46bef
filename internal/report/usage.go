// Package report renders run output for the terminal: live progress lines,
// the final usage table and the model list.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/treedoc/internal/models"
)

const failedCol = 4

var usageHeaders = []string{
	"Model", "Input tokens", "Output tokens", "Succeeded", "Failed", "Total", "Folders", "Est. cost",
}

// RenderUsage renders one row per model, in priority order, and a total row.
func RenderUsage(lines []models.Line, total models.Line) string {
	rows := make([][]string, 0, len(lines)+1)
	for _, l := range lines {
		rows = append(rows, usageRow(l))
	}
	rows = append(rows, usageRow(total))
	last := len(rows) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(usageHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCellStyle
			case row == last:
				return alignFor(totalCellStyle, col)
			case col == failedCol && rows[row][col] != "0":
				return alignFor(cellStyle, col).Foreground(errorStyle.GetForeground())
			default:
				return alignFor(cellStyle, col)
			}
		})
	return t.String()
}

func alignFor(s lipgloss.Style, col int) lipgloss.Style {
	if col == 0 {
		return s
	}
	return s.Align(lipgloss.Right)
}

func usageRow(l models.Line) []string {
	return []string{
		l.ID,
		FormatNumber(l.InputTokens),
		FormatNumber(l.OutputTokens),
		fmt.Sprintf("%d", l.Succeeded),
		fmt.Sprintf("%d", l.Failed),
		fmt.Sprintf("%d", l.Total),
		fmt.Sprintf("%d/%d", l.FolderSucceeded, l.FolderSucceeded+l.FolderFailed),
		FormatCost(l.Cost),
	}
}

// Usage writes the usage report to an io.Writer. It satisfies the
// orchestrator's Reporter.
type Usage struct {
	W     io.Writer
	Title string
}

// Report renders the table.
func (u *Usage) Report(_ context.Context, lines []models.Line, total models.Line) error {
	title := u.Title
	if title == "" {
		title = "Usage"
	}
	_, err := fmt.Fprintf(u.W, "\n%s\n%s\n", titleStyle.Render(title), RenderUsage(lines, total))
	return err
}

// RenderModels lists the registry in priority order.
func RenderModels(recs []*models.Record) string {
	rows := make([][]string, 0, len(recs))
	for i, r := range recs {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			r.ID,
			FormatNumber(r.MaxTokens),
			fmt.Sprintf("$%.4f", r.InputCostPer1K),
			fmt.Sprintf("$%.4f", r.OutputCostPer1K),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("#", "Model", "Max tokens", "Input /1K", "Output /1K").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return alignFor(cellStyle, col)
		})
	return t.String()
}

// FormatNumber adds thousands separators.
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return FormatNumber(n/1000) + fmt.Sprintf(",%03d", n%1000)
}

// FormatCost formats a dollar amount.
func FormatCost(c float64) string {
	return fmt.Sprintf("$%.4f", c)
}
