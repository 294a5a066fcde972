package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1, 7)

	access, err := m.GenerateToken("admin", "ADMIN")
	require.NoError(t, err)
	claims, err := m.VerifyToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, TypeAccess, claims.TokenType)

	refresh, err := m.GenerateRefreshToken("admin", "ADMIN")
	require.NoError(t, err)
	claims, err = m.VerifyToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.TokenType)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Add(24*time.Hour)))
}

func TestVerifyToken_Rejects(t *testing.T) {
	m := NewJWTManager("secret", 1, 7)
	other := NewJWTManager("other-secret", 1, 7)

	signed, err := other.GenerateToken("admin", "ADMIN")
	require.NoError(t, err)
	_, err = m.VerifyToken(signed)
	assert.Error(t, err)

	expired := NewJWTManager("secret", -1, 7)
	old, err := expired.GenerateToken("admin", "ADMIN")
	require.NoError(t, err)
	_, err = m.VerifyToken(old)
	assert.Error(t, err)

	_, err = m.VerifyToken("not-a-token")
	assert.Error(t, err)
}
