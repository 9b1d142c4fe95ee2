package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateAccounts checks the account list before any network activity.
// A validation failure here is fatal for the whole run.
func ValidateAccounts(accounts []AccountConfig) error {
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}

	for i, account := range accounts {
		if err := validateAccount(&account); err != nil {
			return fmt.Errorf("account %d: %w", i+1, err)
		}
	}
	return nil
}

func validateAccount(a *AccountConfig) error {
	if !a.HasAuth() {
		return fmt.Errorf("must have either 'linux.do', 'github', or 'cookies' configuration")
	}

	if !a.Cookies.Empty() && a.APIUser == "" {
		return fmt.Errorf("cookies configuration requires api_user")
	}

	if a.LinuxDo != nil {
		if err := validate.Struct(a.LinuxDo); err != nil {
			return fmt.Errorf("linux.do configuration must contain username and password")
		}
	}

	if a.GitHub != nil {
		if err := validate.Struct(a.GitHub); err != nil {
			return fmt.Errorf("github configuration must contain username and password")
		}
	}

	if a.Proxy != nil {
		if err := validate.Struct(a.Proxy); err != nil {
			return fmt.Errorf("proxy configuration missing server")
		}
	}

	return nil
}
