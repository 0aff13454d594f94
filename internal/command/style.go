package command

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/joeycumines/truetest/internal/config"
)

// isTerminal reports whether w is a terminal. Tests replace it.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// listStyles renders attribute listings.
type listStyles struct {
	key   lipgloss.Style
	sep   lipgloss.Style
	value lipgloss.Style
	empty lipgloss.Style
}

// newListStyles builds styles for w. The color option selects auto
// (terminals only), always or never.
func newListStyles(w io.Writer, cfg *config.Config) listStyles {
	r := lipgloss.NewRenderer(w)
	switch config.DefaultSchema().Resolve(cfg, config.KeyColor) {
	case "always":
		r.SetColorProfile(termenv.ANSI256)
	case "never":
		r.SetColorProfile(termenv.Ascii)
	default:
		if !isTerminal(w) {
			r.SetColorProfile(termenv.Ascii)
		}
	}
	return listStyles{
		key:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		sep:   r.NewStyle().Faint(true),
		value: r.NewStyle(),
		empty: r.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
	}
}
