package display

import (
	"fmt"
	"io"
	"strings"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatResults implements Formatter.FormatResults.
func (f *tableFormatter) FormatResults(w io.Writer, results []Result) error {
	header := []string{"Root", "Status", "Files", "Error"}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.Root, r.Status, formatNumber(r.Files), r.Error}
	}

	// Status is coloured after padding so escapes do not skew the widths.
	paint := func(col int, cell string) string {
		if col != 1 {
			return cell
		}
		word := strings.TrimRight(cell, " ")
		return statusWord(word, f.config.Color) + cell[len(word):]
	}

	return f.writeTable(w, header, rows, paint)
}

// FormatReport implements Formatter.FormatReport.
func (f *tableFormatter) FormatReport(w io.Writer, report Report) error {
	if err := writeHeader(w, "Watch Manager", f.config.Compact); err != nil {
		return err
	}

	state := "not running"
	if report.Reachable {
		state = "running"
	}

	rows := [][]string{
		{"Address", report.Addr},
		{"State", state},
	}
	if report.Reachable {
		rows = append(rows,
			[]string{"PID", fmt.Sprintf("%d", report.PID)},
			[]string{"Registered Paths", formatNumber(report.Registered)},
		)
	}

	if err := f.writeTable(w, []string{"Field", "Value"}, rows, nil); err != nil {
		return err
	}

	if err := writeHeader(w, "Watched Roots", f.config.Compact); err != nil {
		return err
	}

	roots := make([][]string, len(report.Watched))
	for i, root := range report.Watched {
		roots[i] = []string{fmt.Sprintf("#%d", i+1), root}
	}

	return f.writeTable(w, []string{"#", "Root"}, roots, nil)
}

// writeTable writes a formatted table. paint, when set, decorates each
// padded cell.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string, paint func(col int, cell string) string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths, nil); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths, nil); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths, paint); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int, paint func(col int, cell string) string) error {
	sep := "  "
	if f.config.Compact {
		sep = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(sep)
		}

		padded := fmt.Sprintf("%-*s", widths[i], cell)
		if paint != nil {
			padded = paint(i, padded)
		}
		b.WriteString(padded)
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}
