package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	maker := NewMaker("test-secret", time.Hour)

	tokenStr, err := maker.GenerateToken("user-1", "session-1")
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	claims, err := maker.ParseToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserUID)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestParseToken_WrongSecretRejected(t *testing.T) {
	maker := NewMaker("test-secret", time.Hour)
	other := NewMaker("other-secret", time.Hour)

	tokenStr, err := maker.GenerateToken("user-1", "session-1")
	require.NoError(t, err)

	_, err = other.ParseToken(tokenStr)
	assert.Error(t, err)
}

func TestParseToken_ExpiredRejected(t *testing.T) {
	maker := NewMaker("test-secret", -time.Minute)

	tokenStr, err := maker.GenerateToken("user-1", "session-1")
	require.NoError(t, err)

	_, err = maker.ParseToken(tokenStr)
	assert.Error(t, err)
}

func TestParseToken_GarbageRejected(t *testing.T) {
	maker := NewMaker("test-secret", time.Hour)
	_, err := maker.ParseToken("not.a.token")
	assert.Error(t, err)
}
