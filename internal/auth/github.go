package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hochfrequenz/checkin-orchestrator/internal/browser"
	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// gitHubStrategy drives the GitHub login and OAuth authorization. On an
// unrecognized device GitHub demands a one-time passcode; the strategy
// surfaces that through the verification sink and blocks on the OTP source
// up to the configured wait window.
type gitHubStrategy struct {
	resolver *Resolver
	account  string
	creds    config.Credentials
	proxy    *url.URL
}

func (s *gitHubStrategy) Method() domain.AuthMethod { return domain.MethodGitHub }

func (s *gitHubStrategy) Resolve(ctx context.Context, def *provider.Definition) (*Session, error) {
	if def.GitHubClientID == "" {
		return nil, authErr(domain.MethodGitHub, "sso", fmt.Errorf("provider %s has no github client id", def.Name))
	}

	state, err := fetchAuthState(ctx, def, s.proxy)
	if err != nil {
		return nil, authErr(domain.MethodGitHub, "sso", err)
	}

	b, err := s.resolver.openBrowser(ctx, s.proxy)
	if err != nil {
		return nil, authErr(domain.MethodGitHub, "challenge", err)
	}
	defer b.Close()

	if _, err := b.Navigate(ctx, "https://github.com/login"); err != nil {
		return nil, authErr(domain.MethodGitHub, "challenge", err)
	}
	if err := b.Fill(ctx, "#login_field", s.creds.Username); err != nil {
		return nil, authErr(domain.MethodGitHub, "bad_credentials", err)
	}
	if err := b.Fill(ctx, "#password", s.creds.Password); err != nil {
		return nil, authErr(domain.MethodGitHub, "bad_credentials", err)
	}
	if err := b.Click(ctx, `input[type="submit"][value="Sign in"]`); err != nil {
		return nil, authErr(domain.MethodGitHub, "bad_credentials", err)
	}

	// Account selection interstitial
	if ok, _ := b.Exists(ctx, `form[action="/switch_account"]`); ok {
		if err := b.Click(ctx, `form[action="/switch_account"] input[type="submit"]`); err != nil {
			return nil, authErr(domain.MethodGitHub, "bad_credentials", err)
		}
	}

	// Unrecognized device: GitHub asks for a one-time passcode
	if ok, _ := b.Exists(ctx, `input[name="otp"]`); ok {
		if err := s.handleOTP(ctx, b); err != nil {
			return nil, err
		}
	}

	authorizeURL := fmt.Sprintf(
		"https://github.com/login/oauth/authorize?response_type=code&client_id=%s&state=%s&scope=user:email",
		def.GitHubClientID, state)

	finalURL, err := b.Navigate(ctx, authorizeURL)
	if err != nil {
		return nil, authErr(domain.MethodGitHub, "sso", err)
	}

	// If GitHub still shows the consent page, approve it
	if !strings.HasPrefix(finalURL, def.Origin) {
		if ok, _ := b.Exists(ctx, `button[type="submit"]`); ok {
			if err := b.Click(ctx, `button[type="submit"]`); err != nil {
				return nil, authErr(domain.MethodGitHub, "sso", err)
			}
		}
	}

	if _, err := b.WaitForURL(ctx, fmt.Sprintf("**%s/oauth/**", def.Origin)); err != nil {
		return nil, authErr(domain.MethodGitHub, "sso", fmt.Errorf("oauth callback did not arrive: %w", err))
	}

	apiUser, err := extractUser(ctx, b)
	if err != nil {
		return nil, authErr(domain.MethodGitHub, "sso", err)
	}

	session, err := sessionFromCookies(ctx, b, def, apiUser, domain.MethodGitHub)
	if err != nil {
		return nil, authErr(domain.MethodGitHub, "sso", err)
	}
	return session, nil
}

// handleOTP surfaces the verification hint and blocks on the passcode up to
// the configured window; it never stalls the batch indefinitely.
func (s *gitHubStrategy) handleOTP(ctx context.Context, b browser.Browser) error {
	verifyURL, _ := b.CurrentURL(ctx)

	s.resolver.logger.Info("github one-time passcode required",
		"account", s.account, "url", verifyURL)
	s.resolver.sink(s.account,
		fmt.Sprintf("GitHub verification required. Check the account's mailbox and supply the code. Challenge page: %s", verifyURL))

	if s.resolver.otp == nil {
		return authErr(domain.MethodGitHub, "otp_timeout", fmt.Errorf("no OTP source configured"))
	}

	otpCtx, cancel := context.WithTimeout(ctx, s.resolver.otpTimeout)
	defer cancel()

	code, err := s.resolver.otp.Code(otpCtx, s.account)
	if err != nil {
		return authErr(domain.MethodGitHub, "otp_timeout", err)
	}

	if err := b.Fill(ctx, `input[name="otp"]`, code); err != nil {
		return authErr(domain.MethodGitHub, "bad_credentials", err)
	}
	return nil
}
