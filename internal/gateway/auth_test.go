package gateway

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyExtractsSubject(t *testing.T) {
	v := NewTokenVerifier("secret")

	id, err := v.Verify(signToken(t, "secret", "user-42"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	v := NewTokenVerifier("secret")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewTokenVerifier("secret")

	_, err := v.Verify(signToken(t, "other-secret", "user-42"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewTokenVerifier("secret")

	_, err := v.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTokenWithoutIdentity(t *testing.T) {
	v := NewTokenVerifier("secret")

	_, err := v.Verify(signToken(t, "secret", ""))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyFallsBackToUserIDClaim(t *testing.T) {
	claims := &Claims{
		UserID: "user-7",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := NewTokenVerifier("secret").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", id)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	assert.Equal(t, "abc", tokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", tokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	assert.Empty(t, tokenFromRequest(r))
}
