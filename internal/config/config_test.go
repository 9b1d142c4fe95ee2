package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.DefaultProvider != "anyrouter" {
		t.Errorf("DefaultProvider = %s, want anyrouter", cfg.General.DefaultProvider)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("Retry.Attempts = %d, want 3", cfg.Retry.Attempts)
	}
	if cfg.General.OTPTimeout.Std() != 5*time.Minute {
		t.Errorf("OTPTimeout = %v, want 5m", cfg.General.OTPTimeout)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[general]
max_parallel = 4
run_timeout = "10m"

[retry]
attempts = 5
backoff = "1s"

[notifications.dingtalk]
webhook = "https://oapi.dingtalk.com/robot/send?access_token=x"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.MaxParallel != 4 {
		t.Errorf("MaxParallel = %d, want 4", cfg.General.MaxParallel)
	}
	if cfg.General.RunTimeout.Std() != 10*time.Minute {
		t.Errorf("RunTimeout = %v, want 10m", cfg.General.RunTimeout)
	}
	if cfg.Retry.Attempts != 5 {
		t.Errorf("Retry.Attempts = %d, want 5", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff.Std() != time.Second {
		t.Errorf("Retry.Backoff = %v, want 1s", cfg.Retry.Backoff)
	}
	if cfg.Notifications.DingTalk.Webhook == "" {
		t.Error("DingTalk webhook should be set")
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[general]
run_timeout = "soon"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed duration")
	}
}

func TestParseAccountsJSON(t *testing.T) {
	data := `[
		{"name": "work", "provider": "anyrouter", "cookies": {"session": "abc"}, "api_user": "12345"},
		{"linux.do": {"username": "u", "password": "p"}},
		{"github": {"username": "g", "password": "s"}, "unknown_key": true}
	]`

	accounts, err := ParseAccounts([]byte(data), "json")
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 3 {
		t.Fatalf("got %d accounts, want 3", len(accounts))
	}

	if accounts[0].Cookies.Values["session"] != "abc" {
		t.Error("cookie session not parsed")
	}
	if accounts[1].LinuxDo == nil || accounts[1].LinuxDo.Username != "u" {
		t.Error("linux.do credentials not parsed")
	}
	if accounts[2].GitHub == nil {
		t.Error("github credentials not parsed")
	}
}

func TestParseAccountsCookieString(t *testing.T) {
	data := `[{"cookies": "session=abc; cf_clearance=xyz", "api_user": "1"}]`

	accounts, err := ParseAccounts([]byte(data), "json")
	if err != nil {
		t.Fatal(err)
	}

	got := accounts[0].Cookies.Values
	if got["session"] != "abc" || got["cf_clearance"] != "xyz" {
		t.Errorf("cookie string not parsed: %v", got)
	}
}

func TestParseAccountsBareCookieValue(t *testing.T) {
	data := `[{"cookies": "opaquetoken", "api_user": "1"}]`

	accounts, err := ParseAccounts([]byte(data), "json")
	if err != nil {
		t.Fatal(err)
	}

	if accounts[0].Cookies.Values["session"] != "opaquetoken" {
		t.Errorf("bare cookie value should map to session, got %v", accounts[0].Cookies.Values)
	}
}

func TestParseAccountsYAML(t *testing.T) {
	data := `
- name: main
  cookies:
    session: abc
  api_user: "42"
- provider: wong
  linux.do:
    username: u
    password: p
  proxy: socks5://127.0.0.1:1080
`
	accounts, err := ParseAccounts([]byte(data), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[1].Proxy == nil || accounts[1].Proxy.Server != "socks5://127.0.0.1:1080" {
		t.Errorf("string proxy not parsed: %+v", accounts[1].Proxy)
	}
}

func TestParseAccountsRejectsNonArray(t *testing.T) {
	if _, err := ParseAccounts([]byte(`{"name": "x"}`), "json"); err == nil {
		t.Error("object form should be rejected")
	}
}

func TestDisplayName(t *testing.T) {
	named := AccountConfig{Name: "work"}
	if got := named.DisplayName(0); got != "work" {
		t.Errorf("DisplayName = %s, want work", got)
	}

	anon := AccountConfig{}
	if got := anon.DisplayName(2); got != "Account 3" {
		t.Errorf("DisplayName = %s, want Account 3", got)
	}
}

func TestAccountIdentity(t *testing.T) {
	tests := []struct {
		name    string
		account AccountConfig
		want    string
	}{
		{"explicit name", AccountConfig{Name: "work", APIUser: "1"}, "work"},
		{"api user", AccountConfig{APIUser: "777"}, "api_user:777"},
		{"linuxdo login", AccountConfig{LinuxDo: &Credentials{Username: "u", Password: "p"}}, "linux.do:u"},
		{"github login", AccountConfig{GitHub: &Credentials{Username: "g", Password: "p"}}, "github:g"},
		{"positional fallback", AccountConfig{}, "Account 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.Identity(2); got != tt.want {
				t.Errorf("Identity = %q, want %q", got, tt.want)
			}
		})
	}
}
