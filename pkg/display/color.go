package display

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// renderer always emits ANSI sequences; callers decide whether colour is
// wanted before styling.
var renderer = func() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(os.Stderr)
	r.SetColorProfile(termenv.ANSI)
	return r
}()

// Styles used for status words.
var (
	Success = renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	Failure = renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	Info    = renderer.NewStyle().Foreground(lipgloss.Color("6"))
)

// Colorize renders s with style when enabled is true.
func Colorize(s string, enabled bool, style lipgloss.Style) string {
	if !enabled {
		return s
	}
	return style.Render(s)
}

// OK returns the success marker.
func OK(color bool) string {
	return Colorize("OK!", color, Success)
}

// ERR returns the failure marker.
func ERR(color bool) string {
	return Colorize("ERR!", color, Failure)
}
