package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// accountsEnvVar is the environment variable carrying the account list as a
// JSON array, one object per account.
const accountsEnvVar = "ACCOUNTS"

// Credentials holds a username/password pair for an identity provider login
type Credentials struct {
	Username string `json:"username" yaml:"username" validate:"required"`
	Password string `json:"password" yaml:"password" validate:"required"`
}

// AccountConfig describes one account to check in
type AccountConfig struct {
	Name     string       `json:"name" yaml:"name"`
	Provider string       `json:"provider" yaml:"provider"`
	Cookies  Cookies      `json:"cookies" yaml:"cookies"`
	APIUser  string       `json:"api_user" yaml:"api_user"`
	LinuxDo  *Credentials `json:"linux.do" yaml:"linux.do"`
	GitHub   *Credentials `json:"github" yaml:"github"`
	Proxy    *ProxyConfig `json:"proxy" yaml:"proxy"`
}

// DisplayName returns the account's name, defaulting to "Account N" by
// 1-based position when no name is configured.
func (a *AccountConfig) DisplayName(index int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("Account %d", index+1)
}

// Identity returns a stable key for run history lookups. DisplayName shifts
// when unnamed accounts are reordered in the file, so history prefers the
// configured identifiers over the positional fallback.
func (a *AccountConfig) Identity(index int) string {
	switch {
	case a.Name != "":
		return a.Name
	case a.APIUser != "":
		return "api_user:" + a.APIUser
	case a.LinuxDo != nil && a.LinuxDo.Username != "":
		return "linux.do:" + a.LinuxDo.Username
	case a.GitHub != nil && a.GitHub.Username != "":
		return "github:" + a.GitHub.Username
	}
	return a.DisplayName(index)
}

// HasAuth reports whether at least one auth method is configured
func (a *AccountConfig) HasAuth() bool {
	return !a.Cookies.Empty() || a.LinuxDo != nil || a.GitHub != nil
}

// Cookies holds pre-supplied session cookies. Configured either as a map of
// cookie name to value or as a single string ("session=...; other=..." or a
// bare session value).
type Cookies struct {
	Values map[string]string
}

// Empty reports whether no cookies are configured
func (c Cookies) Empty() bool {
	return len(c.Values) == 0
}

// UnmarshalJSON accepts both the map and the string form
func (c *Cookies) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err == nil {
		c.Values = m
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cookies must be an object or a string")
	}
	c.Values = parseCookieString(s)
	return nil
}

// UnmarshalYAML accepts both the map and the string form
func (c *Cookies) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]string
	if err := node.Decode(&m); err == nil {
		c.Values = m
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("cookies must be a mapping or a string")
	}
	c.Values = parseCookieString(s)
	return nil
}

// parseCookieString splits "a=1; b=2" pairs; a bare value becomes the
// session cookie.
func parseCookieString(s string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.Contains(s, "=") {
		return map[string]string{"session": s}
	}

	values := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return values
}

// LoadAccountsEnv reads the account list from the ACCOUNTS environment
// variable. Returns nil, nil when the variable is unset.
func LoadAccountsEnv() ([]AccountConfig, error) {
	raw := os.Getenv(accountsEnvVar)
	if raw == "" {
		return nil, nil
	}
	return ParseAccounts([]byte(raw), "json")
}

// LoadAccountsFile reads the account list from a YAML or JSON file,
// chosen by extension.
func LoadAccountsFile(path string) ([]AccountConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	format := "yaml"
	if ext := filepath.Ext(path); ext == ".json" {
		format = "json"
	}
	return ParseAccounts(data, format)
}

// ParseAccounts decodes an account list from JSON or YAML. The document must
// be an array; unknown keys are ignored.
func ParseAccounts(data []byte, format string) ([]AccountConfig, error) {
	var accounts []AccountConfig

	switch format {
	case "json":
		if err := json.Unmarshal(data, &accounts); err != nil {
			return nil, fmt.Errorf("account configuration must be a JSON array: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &accounts); err != nil {
			return nil, fmt.Errorf("account configuration must be a YAML sequence: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported accounts format: %s", format)
	}

	return accounts, nil
}
