package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileOTPSourceExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otp")
	if err := os.WriteFile(path, []byte("654321\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	source := &FileOTPSource{Path: path}
	code, err := source.Code(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if code != "654321" {
		t.Errorf("code = %s, want 654321", code)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("drop file should be consumed")
	}
}

func TestFileOTPSourceWaitsForDrop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otp")
	source := &FileOTPSource{Path: path}

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, []byte("111222"), 0o600)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, err := source.Code(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if code != "111222" {
		t.Errorf("code = %s, want 111222", code)
	}
}

func TestFileOTPSourceTimeout(t *testing.T) {
	dir := t.TempDir()
	source := &FileOTPSource{Path: filepath.Join(dir, "otp")}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := source.Code(ctx, "a"); err == nil {
		t.Fatal("expected timeout waiting for passcode")
	}
}
