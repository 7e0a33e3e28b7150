package authUtils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	tok, err := GenerateToken(Claims{UserID: "abc", Email: "ana@campus.test", Roles: []string{"STUDENT", "ADMIN"}}, time.Hour, secret)
	require.NoError(t, err)

	c, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.UserID)
	assert.Equal(t, "ana@campus.test", c.Email)
	assert.Equal(t, []string{"STUDENT", "ADMIN"}, c.Roles)
	assert.True(t, c.HasRole("ADMIN"))
	assert.False(t, c.HasRole("MAINTENANCE_STAFF"))
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := GenerateToken(Claims{UserID: "abc"}, -time.Minute, secret)
	require.NoError(t, err)
	_, err = ParseToken(expired, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	good, err := GenerateToken(Claims{UserID: "abc"}, time.Hour, secret)
	require.NoError(t, err)
	_, err = ParseToken(good, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(noUser, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateToken(Claims{UserID: "abc"}, time.Hour, "")
	assert.Error(t, err)
}
