// Package tui renders the installer's interactive prompts and progress
// output with bubbletea and lipgloss.
package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/barysiuk/clipbridge/internal/core"
)

// Prompter implements core.Prompter with one short-lived bubbletea program
// per question. Answers stay on screen after the program exits.
type Prompter struct {
	in  io.Reader
	out io.Writer
}

var _ core.Prompter = (*Prompter)(nil)

// NewPrompter reads keys from in and draws on out. Both are normally the
// process's terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

func (p *Prompter) run(m tea.Model) (tea.Model, error) {
	prog := tea.NewProgram(m, tea.WithInput(p.in), tea.WithOutput(p.out))
	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("running prompt: %w", err)
	}
	return final, nil
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(question string, def bool) (bool, error) {
	final, err := p.run(newConfirmModel(question, def))
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, core.ErrAborted
	}
	return m.answer, nil
}

// Select asks the user to pick one of options and returns its index.
func (p *Prompter) Select(question string, options []string, def int) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("select %q: no options", question)
	}
	final, err := p.run(newSelectModel(question, options, def))
	if err != nil {
		return 0, err
	}
	m := final.(selectModel)
	if !m.answered {
		return 0, core.ErrAborted
	}
	return m.cursor, nil
}

// Input asks for a line of text. validate may be nil.
func (p *Prompter) Input(question, def string, validate func(string) error) (string, error) {
	final, err := p.run(newInputModel(question, def, validate))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if !m.answered {
		return "", core.ErrAborted
	}
	return m.value(), nil
}
