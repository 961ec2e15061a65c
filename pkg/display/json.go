package display

import (
	"encoding/json"
	"io"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatResults implements Formatter.FormatResults.
func (f *jsonFormatter) FormatResults(w io.Writer, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	return f.encode(w, results)
}

// FormatReport implements Formatter.FormatReport.
func (f *jsonFormatter) FormatReport(w io.Writer, report Report) error {
	if report.Watched == nil {
		report.Watched = []string{}
	}
	return f.encode(w, report)
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}
