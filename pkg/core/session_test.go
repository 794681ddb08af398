package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  Claims
		wantErr bool
	}{
		{"teacher", Claims{Role: "teacher", Subject: 3, Name: "Ms. Rivera"}, false},
		{"unknown role", Claims{Role: "janitor", Subject: 3, Name: "x"}, true},
		{"missing subject", Claims{Role: "admin", Name: "root"}, true},
		{"missing name", Claims{Role: "student", Subject: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := FromClaims(tt.claims)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidClaims))
				assert.Nil(t, sc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Role(tt.claims.Role), sc.Role())
			assert.Equal(t, tt.claims.Subject, sc.IdentityID())
			assert.Equal(t, tt.claims.Name, sc.DisplayName())
		})
	}
}

func TestSessionContextRoundTrip(t *testing.T) {
	sc := NewSession(RoleStudent, 42, "Ana")
	ctx := WithSession(context.Background(), sc)

	got, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, sc, got)

	_, ok = SessionFromContext(context.Background())
	assert.False(t, ok)
}

func TestNilSessionAccessors(t *testing.T) {
	var sc *SessionContext
	assert.Equal(t, Role(""), sc.Role())
	assert.Zero(t, sc.IdentityID())
	assert.Empty(t, sc.DisplayName())
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Teacher ")
	assert.True(t, ok)
	assert.Equal(t, RoleTeacher, r)

	_, ok = ParseRole("guest")
	assert.False(t, ok)
	assert.False(t, Role("guest").Valid())
	assert.True(t, RoleAdmin.Valid())
}

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	require.NotEmpty(t, id)

	again, same := EnsureRunID(ctx)
	assert.Equal(t, id, same)
	got, ok := RunID(again)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
