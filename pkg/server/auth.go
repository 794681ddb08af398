package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/core"
)

// ErrInvalidToken is returned for unknown or malformed bearer tokens.
var ErrInvalidToken = errors.New("invalid token")

// Authenticator verifies a bearer token and returns its claims. It stands
// in for the external credential verifier.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (core.Claims, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (core.Claims, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (core.Claims, error) {
	return f(ctx, token)
}

type staticToken struct {
	token  []byte
	claims core.Claims
}

// StaticAuthenticator accepts a fixed set of configured tokens.
type StaticAuthenticator struct {
	tokens []staticToken
}

// NewStaticAuthenticator builds an authenticator from configured tokens.
func NewStaticAuthenticator(tokens []config.TokenConfig) *StaticAuthenticator {
	a := &StaticAuthenticator{tokens: make([]staticToken, 0, len(tokens))}
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		a.tokens = append(a.tokens, staticToken{
			token:  []byte(t.Token),
			claims: core.Claims{Role: strings.ToLower(t.Role), Subject: t.Sub, Name: t.Name},
		})
	}
	return a
}

// Authenticate implements Authenticator. Comparison is constant time.
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (core.Claims, error) {
	for _, t := range a.tokens {
		if subtle.ConstantTimeCompare(t.token, []byte(token)) == 1 {
			return t.claims, nil
		}
	}
	return core.Claims{}, ErrInvalidToken
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
