package auth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// linuxDoStrategy drives the linux.do login and OAuth handoff through the
// browser engine, which also absorbs the forum's native anti-bot defenses.
type linuxDoStrategy struct {
	resolver *Resolver
	account  string
	creds    config.Credentials
	proxy    *url.URL
}

func (s *linuxDoStrategy) Method() domain.AuthMethod { return domain.MethodLinuxDo }

func (s *linuxDoStrategy) Resolve(ctx context.Context, def *provider.Definition) (*Session, error) {
	if def.LinuxDoClientID == "" {
		return nil, authErr(domain.MethodLinuxDo, "sso", fmt.Errorf("provider %s has no linux.do client id", def.Name))
	}

	state, err := fetchAuthState(ctx, def, s.proxy)
	if err != nil {
		return nil, authErr(domain.MethodLinuxDo, "sso", err)
	}

	b, err := s.resolver.openBrowser(ctx, s.proxy)
	if err != nil {
		return nil, authErr(domain.MethodLinuxDo, "challenge", err)
	}
	defer b.Close()

	authorizeURL := fmt.Sprintf(
		"https://connect.linux.do/oauth2/authorize?response_type=code&client_id=%s&state=%s",
		def.LinuxDoClientID, state)

	if _, err := b.Navigate(ctx, "https://linux.do/login"); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "challenge", err)
	}
	if err := b.SolveChallenge(ctx, "waf"); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "challenge", err)
	}

	if err := b.Fill(ctx, "#login-account-name", s.creds.Username); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "bad_credentials", err)
	}
	if err := b.Fill(ctx, "#login-account-password", s.creds.Password); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "bad_credentials", err)
	}
	if err := b.Click(ctx, "#login-button"); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "bad_credentials", err)
	}

	// The SSO approval page shows an allow link when consent is still needed
	if _, err := b.Navigate(ctx, authorizeURL); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "sso", err)
	}
	if ok, _ := b.Exists(ctx, `a[href^="/oauth2/approve"]`); ok {
		if err := b.Click(ctx, `a[href^="/oauth2/approve"]`); err != nil {
			return nil, authErr(domain.MethodLinuxDo, "sso", err)
		}
	}

	if _, err := b.WaitForURL(ctx, fmt.Sprintf("**%s/oauth/**", def.Origin)); err != nil {
		return nil, authErr(domain.MethodLinuxDo, "sso", fmt.Errorf("oauth callback did not arrive: %w", err))
	}

	apiUser, err := extractUser(ctx, b)
	if err != nil {
		return nil, authErr(domain.MethodLinuxDo, "sso", err)
	}

	session, err := sessionFromCookies(ctx, b, def, apiUser, domain.MethodLinuxDo)
	if err != nil {
		return nil, authErr(domain.MethodLinuxDo, "sso", err)
	}
	return session, nil
}
