package display

import (
	"fmt"
	"io"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatResults implements Formatter.FormatResults.
func (f *simpleFormatter) FormatResults(w io.Writer, results []Result) error {
	for _, r := range results {
		line := fmt.Sprintf("%s: %s (%s files)", r.Root, statusWord(r.Status, f.config.Color), formatNumber(r.Files))
		if r.Error != "" {
			line += " - " + r.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

// FormatReport implements Formatter.FormatReport.
func (f *simpleFormatter) FormatReport(w io.Writer, report Report) error {
	manager := "not running"
	if report.Reachable {
		manager = fmt.Sprintf("pid %d, %s paths", report.PID, formatNumber(report.Registered))
	}

	if _, err := fmt.Fprintf(w, "Manager: %s | %s | Watched: %d\n", report.Addr, manager, len(report.Watched)); err != nil {
		return err
	}

	for _, root := range report.Watched {
		if _, err := fmt.Fprintln(w, root); err != nil {
			return err
		}
	}

	return nil
}
