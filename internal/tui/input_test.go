package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func updateInput(t *testing.T, m inputModel, msg tea.Msg) inputModel {
	t.Helper()
	next, _ := m.Update(msg)
	im, ok := next.(inputModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return im
}

func typeText(t *testing.T, m inputModel, s string) inputModel {
	t.Helper()
	for _, r := range s {
		m = updateInput(t, m, runeKey(r))
	}
	return m
}

func TestInputEmptyTakesDefault(t *testing.T) {
	m := newInputModel("TTL (seconds)", "300", nil)
	m = updateInput(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.answered || m.value() != "300" {
		t.Errorf("answered=%v value=%q", m.answered, m.value())
	}
}

func TestInputTypedValue(t *testing.T) {
	m := typeText(t, newInputModel("TTL (seconds)", "300", nil), " 900 ")
	m = updateInput(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.value() != "900" {
		t.Errorf("value = %q, want trimmed 900", m.value())
	}
}

func TestInputValidationKeepsPromptOpen(t *testing.T) {
	validate := func(s string) error {
		if s != "ok" {
			return errors.New("must be ok")
		}
		return nil
	}
	m := typeText(t, newInputModel("Word", "", validate), "no")
	m = updateInput(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.answered {
		t.Fatal("invalid answer accepted")
	}
	if !strings.Contains(m.View(), "must be ok") {
		t.Errorf("error not shown:\n%s", m.View())
	}

	m = updateInput(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = updateInput(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = typeText(t, m, "ok")
	m = updateInput(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.answered || m.err != nil {
		t.Errorf("answered=%v err=%v", m.answered, m.err)
	}
}

func TestInputEscAborts(t *testing.T) {
	m := updateInput(t, newInputModel("Path", "", nil), tea.KeyMsg{Type: tea.KeyEsc})
	if !m.aborted || m.answered {
		t.Errorf("aborted=%v answered=%v", m.aborted, m.answered)
	}
}
