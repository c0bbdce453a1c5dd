package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a yes/no prompt rendered inline below the progress output.
//
// Navigation: left/right/tab/shift+tab move focus between Yes and No.
// Enter activates the focused button. y/n are shortcut accelerators and esc
// answers No. ctrl+c aborts the whole run.
type confirmModel struct {
	question string
	focusYes bool // true = Yes focused, false = No focused.

	answered bool
	answer   bool
	aborted  bool
}

// newConfirmModel focuses the button matching the default answer.
func newConfirmModel(question string, def bool) confirmModel {
	return confirmModel{question: question, focusYes: def}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.aborted = true
		return m, tea.Quit

	// Shortcut accelerators.
	case key.Matches(keyMsg, confirmYesKey):
		return m.respond(true)

	case key.Matches(keyMsg, confirmNoKey), key.Matches(keyMsg, keys.Back):
		return m.respond(false)

	// Enter activates the focused button.
	case key.Matches(keyMsg, keys.Enter):
		return m.respond(m.focusYes)

	case key.Matches(keyMsg, confirmToggle):
		m.focusYes = !m.focusYes
	}
	return m, nil
}

func (m confirmModel) respond(yes bool) (tea.Model, tea.Cmd) {
	m.answered = true
	m.answer = yes
	return m, tea.Quit
}

func (m confirmModel) View() string {
	q := questionStyle.Render(m.question)
	if m.answered || m.aborted {
		ans := "no"
		if m.answer {
			ans = "yes"
		}
		if m.aborted {
			ans = "aborted"
		}
		return q + " " + mutedStyle.Render(ans) + "\n"
	}

	var yesBtn, noBtn string
	if m.focusYes {
		yesBtn = dialogActiveButtonStyle.Render("Yes")
		noBtn = dialogButtonStyle.Render("No")
	} else {
		yesBtn = dialogButtonStyle.Render("Yes")
		noBtn = dialogActiveButtonStyle.Render("No")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yesBtn, "  ", noBtn)
	help := helpStyle.Render("y/n answer • ←/→ move • enter select")
	return q + "\n\n" + buttons + "\n\n" + help + "\n"
}
