package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func typeInto(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		var ok bool
		m, ok = next.(Model)
		if !ok {
			t.Fatalf("Update returned %T", next)
		}
	}
	return m
}

func TestModelSubmitCode(t *testing.T) {
	m := NewModel("alice", "", time.Now().Add(time.Minute))
	m = typeInto(t, m, "123", "456", "enter")

	if m.Code() != "123456" {
		t.Errorf("Code = %q, want 123456", m.Code())
	}
	if m.Cancelled() {
		t.Error("submitted prompt should not be cancelled")
	}
}

func TestModelRejectsEmptySubmit(t *testing.T) {
	m := NewModel("alice", "", time.Now().Add(time.Minute))
	m = typeInto(t, m, "enter")

	if m.done {
		t.Error("empty input must not submit")
	}
}

func TestModelBackspaceAndFilter(t *testing.T) {
	m := NewModel("alice", "", time.Now().Add(time.Minute))
	m = typeInto(t, m, "12!@", "backspace", "enter")

	// Punctuation gets filtered, backspace removes the trailing digit.
	if m.Code() != "1" {
		t.Errorf("Code = %q, want 1", m.Code())
	}
}

func TestModelCancel(t *testing.T) {
	m := NewModel("alice", "", time.Now().Add(time.Minute))
	m = typeInto(t, m, "123", "esc")

	if !m.Cancelled() {
		t.Error("esc should cancel the prompt")
	}
	if m.Code() != "" {
		t.Errorf("cancelled prompt returned code %q", m.Code())
	}
}

func TestModelDeadlineCancels(t *testing.T) {
	m := NewModel("alice", "", time.Now().Add(-time.Second))
	next, _ := m.Update(TickMsg(time.Now()))
	m = next.(Model)

	if !m.Cancelled() {
		t.Error("an expired deadline should cancel the prompt")
	}
}

func TestViewMasksInput(t *testing.T) {
	m := NewModel("alice", "https://github.com/sessions/two-factor", time.Now().Add(time.Minute))
	m = typeInto(t, m, "1234")

	view := m.View()
	if strings.Contains(view, "1234") {
		t.Error("masked view must not reveal the code")
	}
	if !strings.Contains(view, "alice") {
		t.Error("view should name the account")
	}
	if !strings.Contains(view, "two-factor") {
		t.Error("view should show the hint")
	}

	m = typeInto(t, m, "tab")
	if !strings.Contains(m.View(), "1234") {
		t.Error("unmasked view should show the code")
	}
}
