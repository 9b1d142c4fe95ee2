// Package browser defines the boundary to the external anti-detection
// browser engine. The engine itself is an external collaborator; this
// package only transports commands to it.
package browser

import (
	"context"
	"net/url"
	"strings"
)

// Cookie is one browser cookie
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// Browser is the opaque automation capability: navigate, fill fields,
// click, read cookies, solve challenges. Implementations own one page
// context; Close releases it.
type Browser interface {
	// Navigate opens the URL and returns the final URL after redirects
	Navigate(ctx context.Context, url string) (string, error)
	// Fill types a value into the element matched by the CSS selector
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the element matched by the CSS selector
	Click(ctx context.Context, selector string) error
	// Exists reports whether the selector matches an element
	Exists(ctx context.Context, selector string) (bool, error)
	// Text returns the text content of the element matched by the selector
	Text(ctx context.Context, selector string) (string, error)
	// Evaluate runs a script in the page and returns its string result
	Evaluate(ctx context.Context, script string) (string, error)
	// WaitForURL blocks until the page URL matches the glob pattern
	WaitForURL(ctx context.Context, pattern string) (string, error)
	// CurrentURL returns the page's current URL
	CurrentURL(ctx context.Context) (string, error)
	// Cookies returns all cookies in the browsing context
	Cookies(ctx context.Context) ([]Cookie, error)
	// SetCookies installs cookies into the browsing context
	SetCookies(ctx context.Context, cookies []Cookie) error
	// SolveChallenge asks the engine to pass the named anti-bot challenge
	// on the current page (e.g. "waf", "aliyun_captcha")
	SolveChallenge(ctx context.Context, kind string) error
	// Close tears down the page context
	Close() error
}

// Options configure one browser session
type Options struct {
	Proxy    *url.URL
	Headless bool
	Locale   string
}

// Factory opens a new browser session
type Factory func(ctx context.Context, opts Options) (Browser, error)

// FilterCookies keeps only cookies belonging to the origin's host
func FilterCookies(cookies []Cookie, origin string) []Cookie {
	u, err := url.Parse(origin)
	if err != nil {
		return nil
	}
	host := u.Hostname()

	var kept []Cookie
	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == host || strings.HasSuffix(host, "."+domain) {
			kept = append(kept, c)
		}
	}
	return kept
}
