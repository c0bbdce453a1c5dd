package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// inputModel asks for a single line of text. An empty answer takes the
// default. The validator runs on Enter and a failing answer keeps the
// prompt open with the error shown below it.
type inputModel struct {
	question string
	def      string
	validate func(string) error
	input    textinput.Model
	err      error

	answered bool
	aborted  bool
}

func newInputModel(question, def string, validate func(string) error) inputModel {
	ti := textinput.New()
	ti.Placeholder = def
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Focus()
	return inputModel{question: question, def: def, validate: validate, input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

// value is the answer that Enter would submit.
func (m inputModel) value() string {
	v := strings.TrimSpace(m.input.Value())
	if v == "" {
		return m.def
	}
	return v
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, keys.Quit), key.Matches(keyMsg, keys.Back):
			m.aborted = true
			return m, tea.Quit
		case key.Matches(keyMsg, keys.Enter):
			if m.validate != nil {
				if err := m.validate(m.value()); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.err = nil
			m.answered = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	q := questionStyle.Render(m.question)
	if m.answered {
		return q + " " + mutedStyle.Render(m.value()) + "\n"
	}
	if m.aborted {
		return q + " " + mutedStyle.Render("aborted") + "\n"
	}
	if m.def != "" {
		q += " " + mutedStyle.Render("("+m.def+")")
	}
	s := q + "\n" + m.input.View() + "\n"
	if m.err != nil {
		s += errorStyle.Render(m.err.Error()) + "\n"
	}
	return s
}
