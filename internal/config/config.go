package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application settings
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Retry         RetryConfig         `toml:"retry"`
	Browser       BrowserConfig       `toml:"browser"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	DefaultProvider string   `toml:"default_provider"`
	MaxParallel     int      `toml:"max_parallel"`
	RunTimeout      Duration `toml:"run_timeout"`
	HTTPTimeout     Duration `toml:"http_timeout"`
	OTPTimeout      Duration `toml:"otp_timeout"`
	OTPFile         string   `toml:"otp_file"`
	DatabasePath    string   `toml:"database_path"`
}

// RetryConfig holds the retry policy for transient network failures
type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Backoff  Duration `toml:"backoff"`
}

// BrowserConfig holds settings for the external browser automation helper
type BrowserConfig struct {
	Command  string   `toml:"command"`
	Args     []string `toml:"args"`
	Headless bool     `toml:"headless"`
}

// NotificationsConfig holds notification channel settings.
// A channel whose required secrets are incomplete is treated as disabled.
type NotificationsConfig struct {
	Desktop    bool             `toml:"desktop"`
	Email      EmailConfig      `toml:"email"`
	DingTalk   WebhookConfig    `toml:"dingtalk"`
	Feishu     WebhookConfig    `toml:"feishu"`
	WeChatWork WebhookConfig    `toml:"wechat_work"`
	PushPlus   PushPlusConfig   `toml:"pushplus"`
	ServerChan ServerChanConfig `toml:"server_chan"`
}

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	User       string `toml:"user"`
	Pass       string `toml:"pass"`
	SMTPServer string `toml:"smtp_server"`
	To         string `toml:"to"`
}

// WebhookConfig holds a single webhook URL
type WebhookConfig struct {
	Webhook string `toml:"webhook"`
}

// PushPlusConfig holds the pushplus token
type PushPlusConfig struct {
	Token string `toml:"token"`
}

// ServerChanConfig holds the Server酱 send key
type ServerChanConfig struct {
	SendKey string `toml:"send_key"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			DefaultProvider: "anyrouter",
			MaxParallel:     1,
			RunTimeout:      Duration(30 * time.Minute),
			HTTPTimeout:     Duration(30 * time.Second),
			OTPTimeout:      Duration(5 * time.Minute),
			// OTPFile is unset by default so interactive runs get the
			// terminal prompt; set it for unattended runs.
			DatabasePath: filepath.Join(home, ".checkin-orchestrator", "checkin.db"),
		},
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  Duration(2 * time.Second),
		},
		Browser: BrowserConfig{
			Command:  "camoufox-driver",
			Headless: true,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.OTPFile = ExpandPath(cfg.General.OTPFile)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	if cfg.General.MaxParallel < 1 {
		cfg.General.MaxParallel = 1
	}
	if cfg.Retry.Attempts < 1 {
		cfg.Retry.Attempts = 1
	}

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "checkin-orchestrator", "config.toml")
}
