// Package tui renders the interactive one-time-password prompt shown when a
// login flow hits two-factor verification on an attached terminal.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the OTP prompt model
type Model struct {
	account  string
	hint     string
	deadline time.Time

	// UI state
	input     []rune
	masked    bool
	width     int
	remaining time.Duration

	// Result
	code      string
	cancelled bool
	done      bool
}

// NewModel creates a prompt for the given account. The hint usually carries
// the verification URL the browser is parked on.
func NewModel(account, hint string, deadline time.Time) Model {
	return Model{
		account:   account,
		hint:      hint,
		deadline:  deadline,
		masked:    true,
		remaining: time.Until(deadline),
	}
}

// Code returns the submitted code, empty when the prompt was cancelled
func (m Model) Code() string { return m.code }

// Cancelled reports whether the user dismissed the prompt
func (m Model) Cancelled() bool { return m.cancelled }

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg drives the countdown
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
