package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hochfrequenz/checkin-orchestrator/internal/browser"
	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// fakeBrowser scripts the page interactions for a login flow
type fakeBrowser struct {
	selectors map[string]bool   // Exists answers
	evals     map[string]string // Evaluate answers
	cookies   []browser.Cookie
	finalURL  string
	failFill  bool

	filled  map[string]string
	clicked []string
	closed  bool
}

func (f *fakeBrowser) Navigate(ctx context.Context, u string) (string, error) {
	if f.finalURL != "" {
		return f.finalURL, nil
	}
	return u, nil
}

func (f *fakeBrowser) Fill(ctx context.Context, selector, value string) error {
	if f.failFill {
		return errors.New("element not found")
	}
	if f.filled == nil {
		f.filled = make(map[string]string)
	}
	f.filled[selector] = value
	return nil
}

func (f *fakeBrowser) Click(ctx context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	return f.selectors[selector], nil
}

func (f *fakeBrowser) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}

func (f *fakeBrowser) Evaluate(ctx context.Context, script string) (string, error) {
	return f.evals[script], nil
}

func (f *fakeBrowser) WaitForURL(ctx context.Context, pattern string) (string, error) {
	return f.finalURL, nil
}

func (f *fakeBrowser) CurrentURL(ctx context.Context) (string, error) {
	return "https://github.com/sessions/two-factor", nil
}

func (f *fakeBrowser) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return f.cookies, nil
}

func (f *fakeBrowser) SetCookies(ctx context.Context, cookies []browser.Cookie) error { return nil }

func (f *fakeBrowser) SolveChallenge(ctx context.Context, kind string) error { return nil }

func (f *fakeBrowser) Close() error {
	f.closed = true
	return nil
}

func fakeFactory(b *fakeBrowser) browser.Factory {
	return func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
		return b, nil
	}
}

// stateServer fakes the provider's OAuth state endpoint
func stateServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": "state-token"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func testDef(origin string) *provider.Definition {
	return &provider.Definition{
		Name:            "test",
		Origin:          origin,
		AuthStatePath:   "/api/oauth/state",
		UserInfoPath:    "/api/user/self",
		APIUserHeader:   "new-api-user",
		GitHubClientID:  "gh-client",
		LinuxDoClientID: "ld-client",
	}
}

func TestStrategiesForOrder(t *testing.T) {
	r := NewResolver(nil, nil, time.Minute, nil, nil)
	account := &config.AccountConfig{
		Cookies: config.Cookies{Values: map[string]string{"session": "x"}},
		APIUser: "1",
		LinuxDo: &config.Credentials{Username: "u", Password: "p"},
		GitHub:  &config.Credentials{Username: "g", Password: "s"},
	}

	strategies := r.StrategiesFor("a", account, testDef("https://x"), nil)
	want := []domain.AuthMethod{domain.MethodCookies, domain.MethodLinuxDo, domain.MethodGitHub}
	if len(strategies) != len(want) {
		t.Fatalf("got %d strategies, want %d", len(strategies), len(want))
	}
	for i, m := range want {
		if strategies[i].Method() != m {
			t.Errorf("strategy %d = %s, want %s", i, strategies[i].Method(), m)
		}
	}
}

func TestStrategiesForOnlyConfigured(t *testing.T) {
	r := NewResolver(nil, nil, time.Minute, nil, nil)
	account := &config.AccountConfig{GitHub: &config.Credentials{Username: "g", Password: "s"}}

	strategies := r.StrategiesFor("a", account, testDef("https://x"), nil)
	if len(strategies) != 1 || strategies[0].Method() != domain.MethodGitHub {
		t.Fatalf("only the configured method should be attempted, got %v", strategies)
	}
}

func TestResolveCookiesFirstWins(t *testing.T) {
	r := NewResolver(nil, nil, time.Minute, nil, nil)
	account := &config.AccountConfig{
		Cookies: config.Cookies{Values: map[string]string{"session": "abc"}},
		APIUser: "42",
		GitHub:  &config.Credentials{Username: "g", Password: "s"},
	}

	session, err := r.Resolve(context.Background(), "a", account, testDef("https://x"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if session.Method != domain.MethodCookies {
		t.Errorf("method = %s, want cookies", session.Method)
	}
	if session.Cookies["session"] != "abc" || session.APIUser != "42" {
		t.Errorf("session not built from configured cookies: %+v", session)
	}
}

func TestResolveNoMethods(t *testing.T) {
	r := NewResolver(nil, nil, time.Minute, nil, nil)

	_, err := r.Resolve(context.Background(), "a", &config.AccountConfig{}, testDef("https://x"), nil)
	if err == nil {
		t.Fatal("account without auth methods should fail to resolve")
	}
}

func TestLinuxDoResolve(t *testing.T) {
	server := stateServer(t)
	def := testDef(server.URL)

	b := &fakeBrowser{
		finalURL: server.URL + "/oauth/linuxdo?code=ok",
		evals: map[string]string{
			`() => localStorage.getItem("user")`: `{"id": 777}`,
		},
		cookies: []browser.Cookie{
			{Name: "session", Value: "s3", Domain: mustHost(t, server.URL)},
			{Name: "other", Value: "x", Domain: "linux.do"},
		},
	}

	r := NewResolver(fakeFactory(b), nil, time.Minute, nil, nil)
	account := &config.AccountConfig{LinuxDo: &config.Credentials{Username: "u", Password: "p"}}

	session, err := r.Resolve(context.Background(), "a", account, def, nil)
	if err != nil {
		t.Fatal(err)
	}

	if session.APIUser != "777" {
		t.Errorf("api user = %s, want 777", session.APIUser)
	}
	if session.Cookies["session"] != "s3" {
		t.Errorf("session cookie missing: %v", session.Cookies)
	}
	if _, ok := session.Cookies["other"]; ok {
		t.Error("foreign-domain cookie should be filtered out")
	}
	if b.filled["#login-account-name"] != "u" {
		t.Error("username not filled")
	}
	if !b.closed {
		t.Error("browser session should be closed")
	}
}

func TestGitHubResolveWithOTP(t *testing.T) {
	server := stateServer(t)
	def := testDef(server.URL)

	b := &fakeBrowser{
		selectors: map[string]bool{`input[name="otp"]`: true},
		finalURL:  server.URL + "/oauth/github?code=ok",
		evals: map[string]string{
			`() => localStorage.getItem("user")`: `{"id": "55"}`,
		},
		cookies: []browser.Cookie{{Name: "session", Value: "gh", Domain: mustHost(t, server.URL)}},
	}

	var hint string
	sink := func(account, message string) { hint = message }
	otp := OTPFunc(func(ctx context.Context, account string) (string, error) {
		return "123456", nil
	})

	r := NewResolver(fakeFactory(b), otp, time.Minute, sink, nil)
	account := &config.AccountConfig{GitHub: &config.Credentials{Username: "g", Password: "s"}}

	session, err := r.Resolve(context.Background(), "a", account, def, nil)
	if err != nil {
		t.Fatal(err)
	}

	if session.APIUser != "55" {
		t.Errorf("api user = %s, want 55", session.APIUser)
	}
	if b.filled[`input[name="otp"]`] != "123456" {
		t.Error("otp code not filled")
	}
	if hint == "" {
		t.Error("verification hint should be emitted")
	}
}

func TestGitHubOTPTimeout(t *testing.T) {
	server := stateServer(t)
	def := testDef(server.URL)

	b := &fakeBrowser{
		selectors: map[string]bool{`input[name="otp"]`: true},
	}

	otp := OTPFunc(func(ctx context.Context, account string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	r := NewResolver(fakeFactory(b), otp, 20*time.Millisecond, nil, nil)
	account := &config.AccountConfig{GitHub: &config.Credentials{Username: "g", Password: "s"}}

	_, err := r.Resolve(context.Background(), "a", account, def, nil)
	if err == nil {
		t.Fatal("expected otp timeout")
	}

	var authError *Error
	if !errors.As(err, &authError) {
		t.Fatalf("error should be *auth.Error, got %T", err)
	}
	if authError.Kind != "otp_timeout" {
		t.Errorf("kind = %s, want otp_timeout", authError.Kind)
	}
}

func TestGitHubBadCredentials(t *testing.T) {
	server := stateServer(t)
	def := testDef(server.URL)

	b := &fakeBrowser{failFill: true}

	r := NewResolver(fakeFactory(b), nil, time.Minute, nil, nil)
	account := &config.AccountConfig{GitHub: &config.Credentials{Username: "g", Password: "s"}}

	_, err := r.Resolve(context.Background(), "a", account, def, nil)
	var authError *Error
	if !errors.As(err, &authError) {
		t.Fatalf("error should be *auth.Error, got %v", err)
	}
	if authError.Method != domain.MethodGitHub {
		t.Errorf("method = %s, want github", authError.Method)
	}
}

func mustHost(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Hostname()
}
