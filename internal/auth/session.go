// Package auth resolves an account's configuration into an authenticated
// session. Strategies are tried in a fixed priority order: pre-supplied
// cookies first, then linux.do, then GitHub.
package auth

import (
	"fmt"

	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
)

// Session is the authenticated context for one check-in attempt: the
// session cookies plus the resolved user identifier. Bound to one account
// and one provider, never persisted across runs.
type Session struct {
	Cookies map[string]string
	APIUser string
	Method  domain.AuthMethod
}

// Error is a typed authentication failure
type Error struct {
	Method domain.AuthMethod
	Kind   string // bad_credentials, otp_timeout, challenge, sso
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s auth failed (%s): %v", e.Method, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s auth failed (%s)", e.Method, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// authErr builds an Error
func authErr(method domain.AuthMethod, kind string, err error) *Error {
	return &Error{Method: method, Kind: kind, Err: err}
}
