package middleware_test

import (
	"testing"
	"time"

	mw "github.com/JassinAlSafe/gamerfie-sub001/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := mw.GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := mw.ParseToken(token, "secret")
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := mw.GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)

	_, err = mw.ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := mw.GenerateToken(42, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = mw.ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	_, err := mw.ParseToken("not.a.token", "secret")
	assert.Error(t, err)
}
