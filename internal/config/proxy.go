package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// proxyEnvVar carries the global proxy as a JSON object or a bare URI string.
const proxyEnvVar = "PROXY"

// ProxyConfig describes an outbound proxy. Username/password, when set
// separately, are merged into the server URI if it lacks credentials.
type ProxyConfig struct {
	Server   string `json:"server" yaml:"server" validate:"required"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// URL returns the proxy as a URL with credentials applied
func (p *ProxyConfig) URL() (*url.URL, error) {
	if p == nil || p.Server == "" {
		return nil, nil
	}

	u, err := url.Parse(p.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy server %q: %w", p.Server, err)
	}

	if u.User == nil && p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u, nil
}

// UnmarshalJSON accepts both the object and the bare-string form
func (p *ProxyConfig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Server = s
		return nil
	}

	type plain ProxyConfig
	return json.Unmarshal(data, (*plain)(p))
}

// UnmarshalYAML accepts both the object and the bare-string form
func (p *ProxyConfig) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		p.Server = s
		return nil
	}

	type plain ProxyConfig
	return node.Decode((*plain)(p))
}

// EffectiveProxy applies the precedence per-account > global > none
func EffectiveProxy(account, global *ProxyConfig) *ProxyConfig {
	if account != nil && account.Server != "" {
		return account
	}
	if global != nil && global.Server != "" {
		return global
	}
	return nil
}

// LoadProxyEnv reads the global proxy from the PROXY environment variable.
// The value may be a JSON object ({"server": ..., "username": ...}) or a
// plain proxy URI. Returns nil when the variable is unset.
func LoadProxyEnv() (*ProxyConfig, error) {
	raw := os.Getenv(proxyEnvVar)
	if raw == "" {
		return nil, nil
	}

	var p ProxyConfig
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		if p.Server == "" {
			return nil, fmt.Errorf("proxy configuration missing server")
		}
		return &p, nil
	}

	return &ProxyConfig{Server: raw}, nil
}
