package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// OTPSource supplies a one-time passcode for an account. Implementations
// must honor the context deadline: the caller bounds the wait so a missing
// code cannot stall the whole batch.
type OTPSource interface {
	Code(ctx context.Context, account string) (string, error)
}

// OTPFunc adapts a function to an OTPSource
type OTPFunc func(ctx context.Context, account string) (string, error)

// Code calls the function
func (f OTPFunc) Code(ctx context.Context, account string) (string, error) {
	return f(ctx, account)
}

// FileOTPSource waits for the passcode to be dropped into a file, the
// out-of-band channel for non-interactive runs: the human opens the
// verification link, then writes the code to the agreed path.
type FileOTPSource struct {
	Path string
}

// Code blocks until the drop file appears (or its content changes), then
// consumes it.
func (s *FileOTPSource) Code(ctx context.Context, account string) (string, error) {
	if code, ok := s.consume(); ok {
		return code, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	if err := watcher.Add(dir); err != nil {
		return "", err
	}

	// The file may have landed between the first check and the watch
	if code, ok := s.consume(); ok {
		return code, nil
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return "", fmt.Errorf("otp watcher closed")
			}
			if event.Name != s.Path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if code, ok := s.consume(); ok {
				return code, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", fmt.Errorf("otp watcher closed")
			}
			return "", err
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for passcode at %s: %w", s.Path, ctx.Err())
		}
	}
}

// consume reads and removes the drop file
func (s *FileOTPSource) consume() (string, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", false
	}
	code := strings.TrimSpace(string(data))
	if code == "" {
		return "", false
	}
	os.Remove(s.Path)
	return code, true
}
