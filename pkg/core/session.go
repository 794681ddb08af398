// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Claims are the verified attributes handed over by the credential
// verifier. The dispatcher trusts them as-is.
type Claims struct {
	Role    string `json:"role" yaml:"role" validate:"required,oneof=admin teacher student"`
	Subject int64  `json:"sub" yaml:"sub" validate:"required,gt=0"`
	Name    string `json:"name" yaml:"name" validate:"required,max=200"`
}

// SessionContext is the immutable identity a single request runs under.
// Fields are unexported; the value never changes after FromClaims.
type SessionContext struct {
	role        Role
	identityID  int64
	displayName string
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func claimsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ErrInvalidClaims is returned when claims fail validation.
var ErrInvalidClaims = errors.New("invalid session claims")

// FromClaims validates c and builds a session from it.
func FromClaims(c Claims) (*SessionContext, error) {
	if err := claimsValidator().Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	role, _ := ParseRole(c.Role)
	return &SessionContext{
		role:        role,
		identityID:  c.Subject,
		displayName: c.Name,
	}, nil
}

// NewSession builds a session without claim validation. Intended for
// trusted callers such as tests and the CLI.
func NewSession(role Role, identityID int64, displayName string) *SessionContext {
	return &SessionContext{role: role, identityID: identityID, displayName: displayName}
}

func (s *SessionContext) Role() Role {
	if s == nil {
		return ""
	}
	return s.role
}

func (s *SessionContext) IdentityID() int64 {
	if s == nil {
		return 0
	}
	return s.identityID
}

func (s *SessionContext) DisplayName() string {
	if s == nil {
		return ""
	}
	return s.displayName
}

type sessionKey struct{}

// WithSession attaches a session to the context.
func WithSession(ctx context.Context, s *SessionContext) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session if present.
func SessionFromContext(ctx context.Context) (*SessionContext, bool) {
	s, ok := ctx.Value(sessionKey{}).(*SessionContext)
	return s, ok && s != nil
}
