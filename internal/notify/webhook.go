package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// webhookNotifier posts a channel-specific JSON payload to a webhook URL.
// The payload builders below cover the bot webhook dialects of the
// supported chat services.
type webhookNotifier struct {
	name    string
	url     string
	payload func(n Notification) any
	client  *http.Client
}

func newWebhookNotifier(name, url string, payload func(n Notification) any) *webhookNotifier {
	return &webhookNotifier{
		name:    name,
		url:     url,
		payload: payload,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name
func (w *webhookNotifier) Name() string { return w.name }

// Send posts the notification payload to the webhook
func (w *webhookNotifier) Send(n Notification) error {
	if w.url == "" {
		return nil // Disabled
	}

	body, err := json.Marshal(w.payload(n))
	if err != nil {
		return err
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", w.name, resp.StatusCode)
	}
	return nil
}

// NewDingTalkNotifier creates a DingTalk bot webhook notifier
func NewDingTalkNotifier(webhookURL string) Notifier {
	return newWebhookNotifier("dingtalk", webhookURL, func(n Notification) any {
		return map[string]any{
			"msgtype": "text",
			"text": map[string]string{
				"content": n.Title + "\n" + n.Message,
			},
		}
	})
}

// NewFeishuNotifier creates a Feishu bot webhook notifier
func NewFeishuNotifier(webhookURL string) Notifier {
	return newWebhookNotifier("feishu", webhookURL, func(n Notification) any {
		return map[string]any{
			"msg_type": "text",
			"content": map[string]string{
				"text": n.Title + "\n" + n.Message,
			},
		}
	})
}

// NewWeChatWorkNotifier creates a WeChat Work bot webhook notifier
func NewWeChatWorkNotifier(webhookURL string) Notifier {
	return newWebhookNotifier("wechat_work", webhookURL, func(n Notification) any {
		return map[string]any{
			"msgtype": "text",
			"text": map[string]string{
				"content": n.Title + "\n" + n.Message,
			},
		}
	})
}
