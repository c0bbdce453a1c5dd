package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

func updateSelect(t *testing.T, m selectModel, msg tea.Msg) selectModel {
	t.Helper()
	next, _ := m.Update(msg)
	sm, ok := next.(selectModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return sm
}

func TestNewSelectModelClampsDefault(t *testing.T) {
	opts := []string{"Ubuntu", "Debian"}
	if m := newSelectModel("Pick", opts, 1); m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	for _, def := range []int{-1, 2, 99} {
		if m := newSelectModel("Pick", opts, def); m.cursor != 0 {
			t.Errorf("def %d: cursor = %d, want 0", def, m.cursor)
		}
	}
}

func TestSelectNavigation(t *testing.T) {
	m := newSelectModel("Pick", []string{"a", "b", "c"}, 0)

	m = updateSelect(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 {
		t.Errorf("up at top: cursor = %d", m.cursor)
	}
	m = updateSelect(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = updateSelect(t, m, runeKey('j'))
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor)
	}
	m = updateSelect(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 2 {
		t.Errorf("down at bottom: cursor = %d", m.cursor)
	}
	m = updateSelect(t, m, runeKey('k'))
	m = updateSelect(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.answered || m.cursor != 1 {
		t.Errorf("answered=%v cursor=%d", m.answered, m.cursor)
	}
}

func TestSelectEscAborts(t *testing.T) {
	m := updateSelect(t, newSelectModel("Pick", []string{"a"}, 0), tea.KeyMsg{Type: tea.KeyEsc})
	if !m.aborted || m.answered {
		t.Errorf("aborted=%v answered=%v", m.aborted, m.answered)
	}
}

func TestSelectTruncatesLongLabels(t *testing.T) {
	long := strings.Repeat("x", 200)
	m := newSelectModel("Pick", []string{long, "short"}, 0)
	m = updateSelect(t, m, tea.WindowSizeMsg{Width: 30, Height: 10})

	for _, line := range strings.Split(m.View(), "\n") {
		if w := ansi.StringWidth(line); w > 30 && strings.Contains(line, "x") {
			t.Errorf("line width %d exceeds terminal: %q", w, line)
		}
	}
	if !strings.Contains(m.View(), "…") {
		t.Error("truncated label has no ellipsis")
	}
	if !strings.Contains(m.View(), "short") {
		t.Error("short label missing")
	}
}
