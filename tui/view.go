package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	inputStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// View renders the prompt
func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Verification code required for %s", m.account)))
	b.WriteString("\n")

	if m.hint != "" {
		b.WriteString(hintStyle.Render(m.hint))
		b.WriteString("\n")
	}

	shown := string(m.input)
	if m.masked {
		shown = strings.Repeat("•", len(m.input))
	}
	if shown == "" {
		shown = " "
	}
	b.WriteString(boxStyle.Render(inputStyle.Render(shown)))
	b.WriteString("\n")

	countdown := fmt.Sprintf("%s left", m.remaining.Round(time.Second))
	if m.remaining < 30*time.Second {
		countdown = warningStyle.Render(countdown)
	} else {
		countdown = hintStyle.Render(countdown)
	}
	b.WriteString(countdown)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter submit • tab unmask • esc cancel"))
	b.WriteString("\n")

	return b.String()
}
