package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			code := strings.TrimSpace(string(m.input))
			if code == "" {
				return m, nil
			}
			m.code = code
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		case "backspace":
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case "ctrl+u":
			m.input = nil
		case "tab":
			m.masked = !m.masked
		default:
			for _, r := range msg.Runes {
				if r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
					m.input = append(m.input, r)
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case TickMsg:
		m.remaining = time.Until(m.deadline)
		if m.remaining <= 0 {
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		}
		return m, tickCmd()
	}

	return m, nil
}
