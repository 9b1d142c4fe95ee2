package auth

import (
	"context"

	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// cookieStrategy builds a session directly from pre-supplied cookies.
// Validation is lazy: an expired cookie surfaces as an auth failure at
// check-in time, not here.
type cookieStrategy struct {
	cookies map[string]string
	apiUser string
}

func (s *cookieStrategy) Method() domain.AuthMethod { return domain.MethodCookies }

func (s *cookieStrategy) Resolve(ctx context.Context, def *provider.Definition) (*Session, error) {
	values := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		values[k] = v
	}
	return &Session{
		Cookies: values,
		APIUser: s.apiUser,
		Method:  domain.MethodCookies,
	}, nil
}
