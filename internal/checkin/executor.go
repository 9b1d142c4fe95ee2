// Package checkin performs the authenticated check-in call for one account
// and classifies the result.
package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hochfrequenz/checkin-orchestrator/internal/auth"
	"github.com/hochfrequenz/checkin-orchestrator/internal/browser"
	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// browserHeaders mimic a desktop browser; some sites refuse API-looking
// clients outright.
var browserHeaders = map[string]string{
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en,en-US;q=0.9,zh;q=0.8,zh-CN;q=0.6",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36",
}

// Executor performs check-in calls. Safe for concurrent use; all per-account
// state arrives through the arguments.
type Executor struct {
	httpTimeout    time.Duration
	retry          config.RetryConfig
	browserFactory browser.Factory
	logger         *slog.Logger
}

// NewExecutor creates an Executor
func NewExecutor(httpTimeout time.Duration, retry config.RetryConfig, factory browser.Factory, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &Executor{
		httpTimeout:    httpTimeout,
		retry:          retry,
		browserFactory: factory,
		logger:         logger,
	}
}

// CheckIn performs the check-in for one resolved session. Transient network
// failures are retried up to the configured bound with a short backoff;
// authentication failures and already-checked-in results are never retried.
// Repeated invocation on an already-checked-in account is safe.
func (e *Executor) CheckIn(ctx context.Context, account string, session *auth.Session, def *provider.Definition, proxy *url.URL) domain.Outcome {
	outcome := domain.Outcome{
		Account:   account,
		Provider:  def.Name,
		Method:    session.Method,
		Timestamp: time.Now(),
	}

	cookies := make(map[string]string, len(session.Cookies))
	for k, v := range session.Cookies {
		cookies[k] = v
	}

	// WAF-guarded sites need clearance cookies collected up front
	if def.NeedsWAFCookies() {
		if err := e.collectWAFCookies(ctx, def, proxy, cookies); err != nil {
			outcome.Status = domain.StatusChallengeFailed
			outcome.Detail = fmt.Sprintf("WAF challenge not passed: %v", err)
			return outcome
		}
	}

	client := e.newClient(proxy)

	for attempt := 1; ; attempt++ {
		status, detail := e.attempt(ctx, client, session, def, cookies)
		outcome.Status = status
		outcome.Detail = detail
		outcome.Timestamp = time.Now()

		if status.Terminal() || attempt >= e.retry.Attempts {
			break
		}

		e.logger.Warn("check-in attempt failed, retrying",
			"account", account, "attempt", attempt, "detail", detail)
		select {
		case <-time.After(e.retry.Backoff.Std()):
		case <-ctx.Done():
			outcome.Detail = fmt.Sprintf("%s (run cancelled)", detail)
			return outcome
		}
	}

	// Successful check-ins also report the account balance. A failed
	// balance fetch leaves the quota at zero without failing the run,
	// which suppresses the balance-change trigger for this account.
	if outcome.Status.Succeeded() {
		quota, used, err := e.fetchUserInfo(ctx, client, session, def, cookies)
		if err != nil {
			e.logger.Warn("balance fetch failed after check-in",
				"account", account, "provider", def.Name, "error", err)
		} else {
			outcome.Quota = quota
			outcome.UsedQuota = used
		}
	}
	return outcome
}

// attempt is one non-retried pass: the check-in call itself, or the user
// info fetch for sites where that implies the check-in.
func (e *Executor) attempt(ctx context.Context, client *http.Client, session *auth.Session, def *provider.Definition, cookies map[string]string) (domain.Status, string) {
	if !def.NeedsManualCheckIn() {
		// Fetching user info completes the check-in on these sites.
		// The response is classified like a check-in response; an
		// expired cookie is an auth failure, not a network error.
		status, body, err := e.do(ctx, client, http.MethodGet, def.UserInfoURL(), session, def, cookies)
		if err != nil {
			return domain.StatusNetworkFailed, err.Error()
		}
		st, detail := Classify(status, body)
		if st == domain.StatusSuccess {
			detail = "check-in completed via user info"
		}
		return st, detail
	}

	status, body, err := e.do(ctx, client, http.MethodPost, def.SignInURL(session.APIUser), session, def, cookies)
	if err != nil {
		return domain.StatusNetworkFailed, err.Error()
	}
	return Classify(status, body)
}

// do issues one API request with the session headers applied and returns the
// response status and body.
func (e *Executor) do(ctx context.Context, client *http.Client, method, target string, session *auth.Session, def *provider.Definition, cookies map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, nil, err
	}
	e.applyHeaders(req, session, def, cookies)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// apiResponse is the new-api JSON envelope
type apiResponse struct {
	Success bool            `json:"success"`
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (r *apiResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Msg
}

func (r *apiResponse) ok() bool {
	return r.Success || (r.Code != nil && *r.Code == 0)
}

// Classify maps an HTTP response to the outcome taxonomy
func Classify(status int, body []byte) (domain.Status, string) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return domain.StatusAuthFailed, fmt.Sprintf("HTTP %d: credentials rejected", status)
	}
	if status >= 500 {
		return domain.StatusNetworkFailed, fmt.Sprintf("HTTP %d", status)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.StatusUnknown, fmt.Sprintf("HTTP %d: unparseable response", status)
	}

	msg := resp.message()
	if strings.Contains(msg, "已经签到") || strings.Contains(strings.ToLower(msg), "already") {
		return domain.StatusAlreadyCheckedIn, msg
	}
	if resp.ok() {
		if msg == "" {
			msg = "check-in successful"
		}
		return domain.StatusSuccess, msg
	}

	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: check-in refused", status)
	}
	if strings.Contains(msg, "未登录") || strings.Contains(strings.ToLower(msg), "unauthorized") {
		return domain.StatusAuthFailed, msg
	}
	return domain.StatusUnknown, msg
}

// userInfo is the payload of the user info endpoint
type userInfo struct {
	Quota     int64 `json:"quota"`
	UsedQuota int64 `json:"used_quota"`
}

// fetchUserInfo reads the account's quota after a successful check-in
func (e *Executor) fetchUserInfo(ctx context.Context, client *http.Client, session *auth.Session, def *provider.Definition, cookies map[string]string) (int64, int64, error) {
	status, body, err := e.do(ctx, client, http.MethodGet, def.UserInfoURL(), session, def, cookies)
	if err != nil {
		return 0, 0, err
	}
	if status != http.StatusOK {
		return 0, 0, fmt.Errorf("user info returned %d", status)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, 0, fmt.Errorf("user info returned %d: unparseable body", status)
	}
	if !envelope.ok() {
		return 0, 0, fmt.Errorf("user info refused: %s", envelope.message())
	}

	var info userInfo
	if err := json.Unmarshal(envelope.Data, &info); err != nil {
		return 0, 0, fmt.Errorf("parsing user info: %w", err)
	}
	return info.Quota, info.UsedQuota, nil
}

// applyHeaders sets the cookie header, the user identifier header and the
// browser-mimicking headers.
func (e *Executor) applyHeaders(req *http.Request, session *auth.Session, def *provider.Definition, cookies map[string]string) {
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Origin", def.Origin)
	req.Header.Set("Referer", def.Origin+"/console")
	if def.APIUserHeader != "" && session.APIUser != "" {
		req.Header.Set(def.APIUserHeader, session.APIUser)
	}

	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// newClient builds an HTTP client with the account's proxy applied
func (e *Executor) newClient(proxy *url.URL) *http.Client {
	transport := &http.Transport{}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   e.httpTimeout,
	}
}

// collectWAFCookies drives the browser through the WAF challenge and merges
// the clearance cookies into the request cookie set.
func (e *Executor) collectWAFCookies(ctx context.Context, def *provider.Definition, proxy *url.URL, cookies map[string]string) error {
	if e.browserFactory == nil {
		return fmt.Errorf("no browser capability configured")
	}

	b, err := e.browserFactory(ctx, browser.Options{Proxy: proxy, Headless: true, Locale: "en-US"})
	if err != nil {
		return err
	}
	defer b.Close()

	if _, err := b.Navigate(ctx, def.Origin); err != nil {
		return err
	}
	if err := b.SolveChallenge(ctx, "waf"); err != nil {
		return err
	}

	collected, err := b.Cookies(ctx)
	if err != nil {
		return err
	}
	for _, c := range browser.FilterCookies(collected, def.Origin) {
		if _, exists := cookies[c.Name]; !exists {
			cookies[c.Name] = c.Value
		}
	}
	return nil
}
