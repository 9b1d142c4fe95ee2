package provider

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// BypassMethod names a site quirk that must be worked around before the
// check-in request is issued.
type BypassMethod string

const (
	// BypassWAFCookies means the site sits behind a WAF whose clearance
	// cookies must be collected through the browser engine first.
	BypassWAFCookies BypassMethod = "waf_cookies"
)

// Definition describes one check-in site: its endpoints, header conventions
// and behavioral quirks. Immutable after registry construction.
type Definition struct {
	Name          string `json:"-"`
	Origin        string `json:"origin"`
	LoginPath     string `json:"login_path"`
	StatusPath    string `json:"status_path"`
	AuthStatePath string `json:"auth_state_path"`

	// SignInPath is the manual check-in endpoint. Empty means the site has
	// no explicit endpoint: fetching user info completes the check-in.
	SignInPath   string `json:"sign_in_path"`
	UserInfoPath string `json:"user_info_path"`

	// APIUserHeader is the header carrying the user identifier.
	APIUserHeader string `json:"api_user_key"`

	GitHubClientID  string `json:"github_client_id"`
	GitHubAuthPath  string `json:"github_auth_path"`
	LinuxDoClientID string `json:"linuxdo_client_id"`
	LinuxDoAuthPath string `json:"linuxdo_auth_path"`

	AliyunCaptcha bool         `json:"aliyun_captcha"`
	Bypass        BypassMethod `json:"bypass_method"`

	// SignSecret, when set, switches the sign-in URL to the HMAC-signed
	// form (timestamp/signature/timezone query parameters).
	SignSecret   string `json:"sign_secret"`
	SignTimezone string `json:"sign_timezone"`

	// Cadence is an optional cron expression describing when a new
	// check-in window opens. Empty means every run is worth attempting.
	Cadence string `json:"cadence"`
}

// NeedsWAFCookies reports whether WAF clearance cookies must be collected
// before the check-in call.
func (d *Definition) NeedsWAFCookies() bool {
	return d.Bypass == BypassWAFCookies
}

// NeedsManualCheckIn reports whether the site has an explicit check-in
// endpoint to call.
func (d *Definition) NeedsManualCheckIn() bool {
	return d.SignInPath != "" || d.SignSecret != ""
}

// LoginURL returns the site login page URL
func (d *Definition) LoginURL() string { return d.Origin + d.LoginPath }

// StatusURL returns the site status endpoint URL
func (d *Definition) StatusURL() string { return d.Origin + d.StatusPath }

// AuthStateURL returns the OAuth state endpoint URL
func (d *Definition) AuthStateURL() string { return d.Origin + d.AuthStatePath }

// UserInfoURL returns the user info endpoint URL
func (d *Definition) UserInfoURL() string { return d.Origin + d.UserInfoPath }

// GitHubAuthURL returns the site's GitHub OAuth endpoint URL
func (d *Definition) GitHubAuthURL() string { return d.Origin + d.GitHubAuthPath }

// LinuxDoAuthURL returns the site's linux.do OAuth endpoint URL
func (d *Definition) LinuxDoAuthURL() string { return d.Origin + d.LinuxDoAuthPath }

// SignInURL returns the check-in URL for the given user, or "" when the site
// has no explicit check-in endpoint. Sites with a signing secret get the
// signed form.
func (d *Definition) SignInURL(userID string) string {
	if d.SignSecret != "" {
		return SignedCheckInURL(d.Origin, userID, d.SignSecret, d.SignTimezone, time.Now())
	}
	if d.SignInPath == "" {
		return ""
	}
	return d.Origin + d.SignInPath
}

// cadenceParser accepts standard five-field cron expressions
var cadenceParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the definition for structural problems
func (d *Definition) Validate() error {
	if d.Origin == "" {
		return fmt.Errorf("provider %s: origin is required", d.Name)
	}
	if d.Cadence != "" {
		if _, err := cadenceParser.Parse(d.Cadence); err != nil {
			return fmt.Errorf("provider %s: invalid cadence expression: %w", d.Name, err)
		}
	}
	return nil
}

// DueSince reports whether a new check-in window opened between the last
// successful check-in and now. Without a cadence every run is due.
func (d *Definition) DueSince(last, now time.Time) bool {
	if d.Cadence == "" || last.IsZero() {
		return true
	}
	sched, err := cadenceParser.Parse(d.Cadence)
	if err != nil {
		return true
	}
	next := sched.Next(last)
	return !next.After(now)
}
