package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// defaultWidth is used until the terminal reports its size.
const defaultWidth = 80

// selectModel lets the user pick one option from a short list. Labels
// wider than the terminal are truncated with an ellipsis.
type selectModel struct {
	question string
	options  []string
	cursor   int
	width    int

	answered bool
	aborted  bool
}

func newSelectModel(question string, options []string, def int) selectModel {
	if def < 0 || def >= len(options) {
		def = 0
	}
	return selectModel{question: question, options: options, cursor: def, width: defaultWidth}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Back):
			m.aborted = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Enter):
			m.answered = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// label renders option i truncated to the available width. Two columns are
// reserved for the cursor.
func (m selectModel) label(i int) string {
	w := m.width - 2
	if w < 4 {
		w = 4
	}
	return ansi.Truncate(m.options[i], w, "…")
}

func (m selectModel) View() string {
	q := questionStyle.Render(m.question)
	if m.answered {
		return q + " " + mutedStyle.Render(m.label(m.cursor)) + "\n"
	}
	if m.aborted {
		return q + " " + mutedStyle.Render("aborted") + "\n"
	}

	var b strings.Builder
	b.WriteString(q + "\n")
	for i := range m.options {
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render("> " + m.label(i)))
		} else {
			b.WriteString(normalItemStyle.Render("  " + m.label(i)))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc cancel") + "\n")
	return b.String()
}
