package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// providersEnvVar carries custom provider definitions as a JSON object
// keyed by provider name. Entries override the built-ins.
const providersEnvVar = "PROVIDERS"

// Registry maps provider names to definitions. Built once at startup and
// read-only afterwards, so concurrent reads from account workers are safe.
type Registry struct {
	providers   map[string]*Definition
	defaultName string
	logger      *slog.Logger
}

// builtins returns the statically known providers
func builtins() map[string]*Definition {
	return map[string]*Definition{
		"anyrouter": {
			Name:            "anyrouter",
			Origin:          "https://anyrouter.top",
			LoginPath:       "/login",
			StatusPath:      "/api/status",
			AuthStatePath:   "/api/oauth/state",
			SignInPath:      "/api/user/sign_in",
			UserInfoPath:    "/api/user/self",
			APIUserHeader:   "new-api-user",
			GitHubClientID:  "Ov23liOwlnIiYoF3bUqw",
			GitHubAuthPath:  "/api/oauth/github",
			LinuxDoClientID: "8w2uZtoWH9AUXrZr1qeCEEmvXLafea3c",
			LinuxDoAuthPath: "/api/oauth/linuxdo",
			Bypass:          BypassWAFCookies,
		},
		"agentrouter": {
			Name:            "agentrouter",
			Origin:          "https://agentrouter.org",
			LoginPath:       "/login",
			StatusPath:      "/api/status",
			AuthStatePath:   "/api/oauth/state",
			SignInPath:      "", // user info fetch completes the check-in
			UserInfoPath:    "/api/user/self",
			APIUserHeader:   "new-api-user",
			GitHubClientID:  "Ov23lidtiR4LeVZvVRNL",
			GitHubAuthPath:  "/api/oauth/github",
			LinuxDoClientID: "KZUecGfhhDZMVnv8UtEdhOhf9sNOhqVX",
			LinuxDoAuthPath: "/api/oauth/linuxdo",
			AliyunCaptcha:   true,
		},
		"wong": {
			Name:            "wong",
			Origin:          "https://wzw.de5.net",
			LoginPath:       "/login",
			StatusPath:      "/api/status",
			AuthStatePath:   "/api/oauth/state",
			SignInPath:      "/api/user/checkin",
			UserInfoPath:    "/api/user/self",
			APIUserHeader:   "new-api-user",
			LinuxDoClientID: "dnJe0SrrGDT8dh4hkbl2bo9R7SQx5If5",
			LinuxDoAuthPath: "/api/oauth/linuxdo",
		},
		"aiai.li": {
			Name:            "aiai.li",
			Origin:          "https://aiai.li",
			LoginPath:       "/login",
			StatusPath:      "/api/status",
			AuthStatePath:   "/api/oauth/state",
			UserInfoPath:    "/api/user/self",
			APIUserHeader:   "new-api-user",
			LinuxDoAuthPath: "/api/oauth/linuxdo",
			SignSecret:      "your-secret-key-here",
			SignTimezone:    "Asia/Shanghai",
		},
	}
}

// NewRegistry builds a registry from the built-ins plus the given overrides.
// A malformed override is skipped with a warning, never fatal.
func NewRegistry(defaultName string, overrides map[string]*Definition, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	providers := builtins()
	for name, def := range overrides {
		if def == nil {
			continue
		}
		def.Name = name
		applyPathDefaults(def)
		if err := def.Validate(); err != nil {
			logger.Warn("skipping invalid provider override", "provider", name, "error", err)
			continue
		}
		providers[name] = def
	}

	if _, ok := providers[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q is not defined", defaultName)
	}

	return &Registry{
		providers:   providers,
		defaultName: defaultName,
		logger:      logger,
	}, nil
}

// applyPathDefaults fills the path conventions shared by new-api sites
func applyPathDefaults(d *Definition) {
	if d.LoginPath == "" {
		d.LoginPath = "/login"
	}
	if d.StatusPath == "" {
		d.StatusPath = "/api/status"
	}
	if d.AuthStatePath == "" {
		d.AuthStatePath = "/api/oauth/state"
	}
	if d.UserInfoPath == "" {
		d.UserInfoPath = "/api/user/self"
	}
	if d.APIUserHeader == "" {
		d.APIUserHeader = "new-api-user"
	}
	if d.GitHubAuthPath == "" {
		d.GitHubAuthPath = "/api/oauth/github"
	}
	if d.LinuxDoAuthPath == "" {
		d.LinuxDoAuthPath = "/api/oauth/linuxdo"
	}
}

// Resolve returns the definition for the given name. An unknown name falls
// back to the default provider with a warning; a misconfigured provider
// field degrades gracefully instead of failing the account.
func (r *Registry) Resolve(name string) *Definition {
	if name == "" {
		return r.providers[r.defaultName]
	}
	if def, ok := r.providers[name]; ok {
		return def
	}
	r.logger.Warn("unknown provider, falling back to default",
		"provider", name, "default", r.defaultName)
	return r.providers[r.defaultName]
}

// Names returns all registered provider names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName returns the name of the fallback provider
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// LoadOverridesEnv reads custom provider definitions from the PROVIDERS
// environment variable. A malformed document is reported but yields no
// overrides rather than failing the run.
func LoadOverridesEnv() (map[string]*Definition, error) {
	raw := os.Getenv(providersEnvVar)
	if raw == "" {
		return nil, nil
	}

	var overrides map[string]*Definition
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("PROVIDERS must be a JSON object: %w", err)
	}
	return overrides, nil
}
