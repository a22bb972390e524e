package transcript

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme colors for the console transcript.
type Theme struct {
	User  lipgloss.Color
	Model lipgloss.Color
	Dim   lipgloss.Color
}

// DefaultTheme is the default console palette.
var DefaultTheme = Theme{
	User:  lipgloss.Color("#58a6ff"),
	Model: lipgloss.Color("#00ff9f"),
	Dim:   lipgloss.Color("#6e7681"),
}

// Console prints transcript fragments as they stream in. Consecutive
// fragments of the same kind continue the current line; a change of
// speaker starts a new labelled line.
type Console struct {
	w io.Writer

	userLabel  lipgloss.Style
	modelLabel lipgloss.Style
	note       lipgloss.Style

	mu   sync.Mutex
	last Kind
}

// NewConsole returns a Console writing to w. Colors are dropped
// automatically when w is not a terminal.
func NewConsole(w io.Writer, theme Theme) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:          w,
		userLabel:  r.NewStyle().Bold(true).Foreground(theme.User),
		modelLabel: r.NewStyle().Bold(true).Foreground(theme.Model),
		note:       r.NewStyle().Italic(true).Foreground(theme.Dim),
	}
}

// Handle implements Handler.
func (c *Console) Handle(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case KindInput, KindOutput:
		if e.Text == "" {
			return
		}
		if e.Kind != c.last {
			if c.last == KindInput || c.last == KindOutput {
				fmt.Fprintln(c.w)
			}
			fmt.Fprint(c.w, c.label(e.Kind)+" ")
		}
		fmt.Fprint(c.w, e.Text)
		c.last = e.Kind
	case KindTurnComplete:
		if c.last == KindInput || c.last == KindOutput {
			fmt.Fprintln(c.w)
		}
		c.last = e.Kind
	case KindInterrupted:
		if c.last == KindInput || c.last == KindOutput {
			fmt.Fprintln(c.w)
		}
		fmt.Fprintln(c.w, c.note.Render("(interrupted)"))
		c.last = e.Kind
	}
}

func (c *Console) label(k Kind) string {
	if k == KindInput {
		return c.userLabel.Render("you:")
	}
	return c.modelLabel.Render("gemini:")
}
