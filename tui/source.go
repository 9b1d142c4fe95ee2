package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Source asks for one-time passwords interactively. It satisfies the OTP
// source contract of the auth package and is only useful on a terminal.
type Source struct {
	// Hint is shown under the title, e.g. the verification URL.
	Hint string
}

// Code runs the prompt and returns the code the user typed
func (s *Source) Code(ctx context.Context, account string) (string, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Minute)
	}

	program := tea.NewProgram(NewModel(account, s.Hint, deadline), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return "", err
	}

	model, ok := final.(Model)
	if !ok || model.Cancelled() || model.Code() == "" {
		return "", errors.New("verification code entry cancelled")
	}
	return model.Code(), nil
}
