package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func updateConfirm(t *testing.T, m confirmModel, msg tea.Msg) (confirmModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	cm, ok := next.(confirmModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return cm, cmd
}

func TestNewConfirmModel(t *testing.T) {
	m := newConfirmModel("Proceed?", true)
	if !m.focusYes {
		t.Error("default true should focus Yes")
	}
	if m.answered || m.aborted {
		t.Error("new confirm should be unanswered")
	}
	if newConfirmModel("Close ShareX?", false).focusYes {
		t.Error("default false should focus No")
	}
}

func TestConfirmUpdate_YesKey(t *testing.T) {
	m, cmd := updateConfirm(t, newConfirmModel("Proceed?", false), runeKey('y'))
	if !m.answered || !m.answer {
		t.Errorf("answered=%v answer=%v, want yes", m.answered, m.answer)
	}
	if cmd == nil {
		t.Error("answering should quit the program")
	}
}

func TestConfirmUpdate_NoKey(t *testing.T) {
	m, cmd := updateConfirm(t, newConfirmModel("Proceed?", true), runeKey('n'))
	if !m.answered || m.answer {
		t.Errorf("answered=%v answer=%v, want no", m.answered, m.answer)
	}
	if cmd == nil {
		t.Error("answering should quit the program")
	}
}

func TestConfirmUpdate_EscAnswersNo(t *testing.T) {
	m, _ := updateConfirm(t, newConfirmModel("Proceed?", true), tea.KeyMsg{Type: tea.KeyEsc})
	if !m.answered || m.answer {
		t.Errorf("esc: answered=%v answer=%v", m.answered, m.answer)
	}
}

func TestConfirmUpdate_CtrlCAborts(t *testing.T) {
	m, cmd := updateConfirm(t, newConfirmModel("Proceed?", true), tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.aborted || m.answered {
		t.Errorf("aborted=%v answered=%v", m.aborted, m.answered)
	}
	if cmd == nil {
		t.Error("abort should quit the program")
	}
}

func TestConfirmUpdate_EnterUsesFocus(t *testing.T) {
	tests := []struct {
		name   string
		def    bool
		toggle bool
		want   bool
	}{
		{"default yes", true, false, true},
		{"default no", false, false, false},
		{"toggled to yes", false, true, true},
		{"toggled to no", true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newConfirmModel("Proceed?", tt.def)
			if tt.toggle {
				m, _ = updateConfirm(t, m, tea.KeyMsg{Type: tea.KeyTab})
			}
			m, _ = updateConfirm(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			if !m.answered || m.answer != tt.want {
				t.Errorf("answer = %v, want %v", m.answer, tt.want)
			}
		})
	}
}

func TestConfirmUpdate_IgnoresOtherKeys(t *testing.T) {
	m, cmd := updateConfirm(t, newConfirmModel("Proceed?", true), runeKey('x'))
	if m.answered || m.aborted || cmd != nil {
		t.Error("unrelated key should not answer")
	}
	if !m.focusYes {
		t.Error("unrelated key changed focus")
	}
}

func TestConfirmView(t *testing.T) {
	m := newConfirmModel("Proceed with installation?", true)
	v := m.View()
	for _, want := range []string{"Proceed with installation?", "Yes", "No"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}

	m, _ = updateConfirm(t, m, runeKey('y'))
	v = m.View()
	if !strings.Contains(v, "yes") || strings.Contains(v, "No") {
		t.Errorf("answered view = %q", v)
	}
}
