package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	pushPlusEndpoint   = "https://www.pushplus.plus/send"
	serverChanEndpoint = "https://sctapi.ftqq.com"
)

// PushPlusNotifier sends through the pushplus push service
type PushPlusNotifier struct {
	token    string
	endpoint string
	client   *http.Client
}

// NewPushPlusNotifier creates a pushplus notifier
func NewPushPlusNotifier(token string) *PushPlusNotifier {
	return &PushPlusNotifier{
		token:    token,
		endpoint: pushPlusEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name
func (p *PushPlusNotifier) Name() string { return "pushplus" }

// Send delivers the notification via pushplus
func (p *PushPlusNotifier) Send(n Notification) error {
	body, err := json.Marshal(map[string]string{
		"token":    p.token,
		"title":    n.Title,
		"content":  n.Message,
		"template": "txt",
	})
	if err != nil {
		return err
	}

	resp, err := p.client.Post(p.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushplus returned %d", resp.StatusCode)
	}
	return nil
}

// ServerChanNotifier sends through the Server酱 push service
type ServerChanNotifier struct {
	sendKey  string
	endpoint string
	client   *http.Client
}

// NewServerChanNotifier creates a Server酱 notifier
func NewServerChanNotifier(sendKey string) *ServerChanNotifier {
	return &ServerChanNotifier{
		sendKey:  sendKey,
		endpoint: serverChanEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name
func (s *ServerChanNotifier) Name() string { return "server_chan" }

// Send delivers the notification via Server酱
func (s *ServerChanNotifier) Send(n Notification) error {
	form := url.Values{
		"title": {n.Title},
		"desp":  {n.Message},
	}

	resp, err := s.client.PostForm(fmt.Sprintf("%s/%s.send", s.endpoint, s.sendKey), form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server_chan returned %d", resp.StatusCode)
	}
	return nil
}
