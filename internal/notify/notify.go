// Package notify fans the run report out to the configured channels.
package notify

import (
	"log/slog"

	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Name() string
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers. A failing channel is logged
// and skipped so the remaining channels still receive the report.
type MultiNotifier struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(logger *slog.Logger, notifiers ...Notifier) *MultiNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiNotifier{notifiers: notifiers, logger: logger}
}

// Channels returns the names of the configured channels
func (m *MultiNotifier) Channels() []string {
	names := make([]string, 0, len(m.notifiers))
	for _, notifier := range m.notifiers {
		names = append(names, notifier.Name())
	}
	return names
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			m.logger.Warn("notification channel failed", "channel", notifier.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// FromConfig builds the notifier set from the configuration. Channels with
// incomplete secrets are left out without an error; an empty configuration
// yields a MultiNotifier that sends nowhere.
func FromConfig(cfg config.NotificationsConfig, logger *slog.Logger) *MultiNotifier {
	var notifiers []Notifier

	if cfg.Desktop {
		notifiers = append(notifiers, NewDesktopNotifier())
	}
	if cfg.Email.User != "" && cfg.Email.Pass != "" && cfg.Email.SMTPServer != "" && cfg.Email.To != "" {
		notifiers = append(notifiers, NewEmailNotifier(cfg.Email))
	}
	if cfg.DingTalk.Webhook != "" {
		notifiers = append(notifiers, NewDingTalkNotifier(cfg.DingTalk.Webhook))
	}
	if cfg.Feishu.Webhook != "" {
		notifiers = append(notifiers, NewFeishuNotifier(cfg.Feishu.Webhook))
	}
	if cfg.WeChatWork.Webhook != "" {
		notifiers = append(notifiers, NewWeChatWorkNotifier(cfg.WeChatWork.Webhook))
	}
	if cfg.PushPlus.Token != "" {
		notifiers = append(notifiers, NewPushPlusNotifier(cfg.PushPlus.Token))
	}
	if cfg.ServerChan.SendKey != "" {
		notifiers = append(notifiers, NewServerChanNotifier(cfg.ServerChan.SendKey))
	}

	return NewMultiNotifier(logger, notifiers...)
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Name() string              { return "noop" }
func (NoopNotifier) Send(n Notification) error { return nil }
