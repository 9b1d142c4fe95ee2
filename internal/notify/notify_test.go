package notify

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
)

func captureServer(t *testing.T, body *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		*body = data
		w.WriteHeader(http.StatusOK)
	}))
}

func TestDingTalkNotifier_Send(t *testing.T) {
	var body []byte
	server := captureServer(t, &body)
	defer server.Close()

	notifier := NewDingTalkNotifier(server.URL)
	err := notifier.Send(Notification{Title: "Check-in report", Message: "2 succeeded"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var payload struct {
		MsgType string `json:"msgtype"`
		Text    struct {
			Content string `json:"content"`
		} `json:"text"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.MsgType != "text" {
		t.Errorf("msgtype = %q, want text", payload.MsgType)
	}
	if payload.Text.Content != "Check-in report\n2 succeeded" {
		t.Errorf("content = %q", payload.Text.Content)
	}
}

func TestFeishuNotifier_Send(t *testing.T) {
	var body []byte
	server := captureServer(t, &body)
	defer server.Close()

	notifier := NewFeishuNotifier(server.URL)
	if err := notifier.Send(Notification{Title: "Report", Message: "done"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var payload struct {
		MsgType string `json:"msg_type"`
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.MsgType != "text" || payload.Content.Text != "Report\ndone" {
		t.Errorf("unexpected payload: %s", body)
	}
}

func TestPushPlusNotifier_Send(t *testing.T) {
	var body []byte
	server := captureServer(t, &body)
	defer server.Close()

	notifier := NewPushPlusNotifier("tok-123")
	notifier.endpoint = server.URL
	if err := notifier.Send(Notification{Title: "Report", Message: "done"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["token"] != "tok-123" || payload["template"] != "txt" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestServerChanNotifier_Send(t *testing.T) {
	var gotPath string
	var gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotTitle = r.PostForm.Get("title")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewServerChanNotifier("SCTKEY")
	notifier.endpoint = server.URL
	if err := notifier.Send(Notification{Title: "Report", Message: "done"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotPath != "/SCTKEY.send" {
		t.Errorf("path = %q, want /SCTKEY.send", gotPath)
	}
	if gotTitle != "Report" {
		t.Errorf("title = %q", gotTitle)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewDingTalkNotifier(server.URL)
	if err := notifier.Send(Notification{Title: "x"}); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestFromConfigSkipsIncompleteChannels(t *testing.T) {
	cfg := config.NotificationsConfig{
		Desktop:    true,
		DingTalk:   config.WebhookConfig{Webhook: "https://example.com/hook"},
		Email:      config.EmailConfig{User: "a@b.c"}, // missing pass, server and to
		PushPlus:   config.PushPlusConfig{},
		ServerChan: config.ServerChanConfig{SendKey: "SCT1"},
	}

	multi := FromConfig(cfg, slog.Default())

	want := []string{"desktop", "dingtalk", "server_chan"}
	if got := multi.Channels(); !reflect.DeepEqual(got, want) {
		t.Errorf("channels = %v, want %v", got, want)
	}
}

func TestFromConfigEmailRequiresServer(t *testing.T) {
	cfg := config.NotificationsConfig{
		Email: config.EmailConfig{User: "a@b.c", Pass: "secret", To: "ops@b.c"},
	}

	if got := FromConfig(cfg, slog.Default()).Channels(); len(got) != 0 {
		t.Errorf("email without an smtp server must stay disabled, got %v", got)
	}

	cfg.Email.SMTPServer = "smtp.b.c"
	want := []string{"email"}
	if got := FromConfig(cfg, slog.Default()).Channels(); !reflect.DeepEqual(got, want) {
		t.Errorf("channels = %v, want %v", got, want)
	}
}

func TestMultiNotifierContinuesAfterFailure(t *testing.T) {
	var called []string
	failing := &mockNotifier{name: "broken", calls: &called, err: errors.New("boom")}
	working := &mockNotifier{name: "working", calls: &called}

	multi := NewMultiNotifier(slog.Default(), failing, working)
	err := multi.Send(Notification{Title: "Test"})

	if len(called) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(called))
	}
	if err == nil {
		t.Error("expected the channel error to surface")
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
	err   error
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}
