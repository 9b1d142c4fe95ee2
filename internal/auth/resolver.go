package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hochfrequenz/checkin-orchestrator/internal/browser"
	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// Strategy yields a session for one auth method
type Strategy interface {
	Method() domain.AuthMethod
	Resolve(ctx context.Context, def *provider.Definition) (*Session, error)
}

// VerificationSink receives out-of-band verification hints (e.g. the OTP
// entry URL) so a human can act on them while the run is blocked.
type VerificationSink func(account, message string)

// Resolver turns an account's configuration into a session. One resolver is
// shared by all account workers; it holds no per-account state.
type Resolver struct {
	browserFactory browser.Factory
	otp            OTPSource
	otpTimeout     time.Duration
	sink           VerificationSink
	logger         *slog.Logger
}

// NewResolver creates a Resolver
func NewResolver(factory browser.Factory, otp OTPSource, otpTimeout time.Duration, sink VerificationSink, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = func(string, string) {}
	}
	return &Resolver{
		browserFactory: factory,
		otp:            otp,
		otpTimeout:     otpTimeout,
		sink:           sink,
		logger:         logger,
	}
}

// StrategiesFor returns the account's configured strategies in priority
// order: cookies, then linux.do, then github. Exactly the listed methods are
// attempted, nothing is inferred.
func (r *Resolver) StrategiesFor(name string, account *config.AccountConfig, def *provider.Definition, proxy *url.URL) []Strategy {
	var strategies []Strategy

	if !account.Cookies.Empty() {
		strategies = append(strategies, &cookieStrategy{
			cookies: account.Cookies.Values,
			apiUser: account.APIUser,
		})
	}
	if account.LinuxDo != nil {
		strategies = append(strategies, &linuxDoStrategy{
			resolver: r,
			account:  name,
			creds:    *account.LinuxDo,
			proxy:    proxy,
		})
	}
	if account.GitHub != nil {
		strategies = append(strategies, &gitHubStrategy{
			resolver: r,
			account:  name,
			creds:    *account.GitHub,
			proxy:    proxy,
		})
	}
	return strategies
}

// Resolve tries the account's strategies in order; first success wins. When
// every configured method fails the last error is returned.
func (r *Resolver) Resolve(ctx context.Context, name string, account *config.AccountConfig, def *provider.Definition, proxy *url.URL) (*Session, error) {
	strategies := r.StrategiesFor(name, account, def, proxy)
	if len(strategies) == 0 {
		return nil, authErr("", "no_method", fmt.Errorf("no auth method configured"))
	}

	var lastErr error
	for _, s := range strategies {
		session, err := s.Resolve(ctx, def)
		if err == nil {
			r.logger.Info("session resolved", "account", name, "method", s.Method())
			return session, nil
		}
		lastErr = err
		r.logger.Warn("auth method failed", "account", name, "method", s.Method(), "error", err)

		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// openBrowser starts one browser session with the account's proxy applied
func (r *Resolver) openBrowser(ctx context.Context, proxy *url.URL) (browser.Browser, error) {
	if r.browserFactory == nil {
		return nil, fmt.Errorf("no browser capability configured")
	}
	return r.browserFactory(ctx, browser.Options{
		Proxy:    proxy,
		Headless: true,
		Locale:   "en-US",
	})
}

// authStateResponse is the provider's OAuth state endpoint payload
type authStateResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data"`
}

// fetchAuthState asks the provider for a fresh OAuth state token
func fetchAuthState(ctx context.Context, def *provider.Definition, proxy *url.URL) (string, error) {
	transport := &http.Transport{}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	client := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, def.AuthStateURL(), nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching oauth state: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var state authStateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return "", fmt.Errorf("oauth state endpoint returned %d: %w", resp.StatusCode, err)
	}
	if !state.Success || state.Data == "" {
		return "", fmt.Errorf("oauth state endpoint refused (%d)", resp.StatusCode)
	}
	return state.Data, nil
}

// extractUser pulls the user id out of the app's localStorage after the
// OAuth handoff lands back on the provider.
func extractUser(ctx context.Context, b browser.Browser) (string, error) {
	raw, err := b.Evaluate(ctx, `() => localStorage.getItem("user")`)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", fmt.Errorf("user object not present in localStorage")
	}

	var user struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return "", fmt.Errorf("parsing user object: %w", err)
	}
	if user.ID.String() == "" {
		return "", fmt.Errorf("user id missing in localStorage")
	}
	return user.ID.String(), nil
}

// sessionFromCookies builds a Session out of the provider-domain cookies
func sessionFromCookies(ctx context.Context, b browser.Browser, def *provider.Definition, apiUser string, method domain.AuthMethod) (*Session, error) {
	cookies, err := b.Cookies(ctx)
	if err != nil {
		return nil, err
	}

	kept := browser.FilterCookies(cookies, def.Origin)
	if len(kept) == 0 {
		return nil, fmt.Errorf("no session cookies for %s", def.Origin)
	}

	values := make(map[string]string, len(kept))
	for _, c := range kept {
		values[c.Name] = c.Value
	}
	return &Session{Cookies: values, APIUser: apiUser, Method: method}, nil
}
