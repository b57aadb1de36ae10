package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipal_Name(t *testing.T) {
	assert.Equal(t, "Ann", Principal{DisplayName: "Ann", Email: "ann@example.com"}.Name())
	assert.Equal(t, "ann@example.com", Principal{Email: "ann@example.com"}.Name())
}

func TestSession_EmitsTransitions(t *testing.T) {
	s := NewSession()
	ctx := context.Background()

	require.NoError(t, s.SignIn(ctx, Principal{UID: "u1", DisplayName: "Ann"}))
	require.NoError(t, s.SignOut(ctx))

	p := <-s.Changes()
	require.NotNil(t, p)
	assert.Equal(t, "u1", p.UID)
	assert.Nil(t, <-s.Changes())
	assert.Nil(t, s.Current())
}

func TestSession_Close(t *testing.T) {
	s := NewSession()
	s.Close()
	s.Close()

	_, ok := <-s.Changes()
	assert.False(t, ok)
	assert.ErrorIs(t, s.SignOut(context.Background()), ErrClosed)
}

func TestSession_FullBufferHonoursContext(t *testing.T) {
	s := NewSession()
	ctx := context.Background()
	for i := 0; i < cap(s.changes); i++ {
		require.NoError(t, s.SignOut(ctx))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.SignOut(ctx), context.DeadlineExceeded)
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", 15*time.Minute)

	token, err := svc.GenerateAccessToken(Principal{UID: "u1", DisplayName: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UID: "u1", DisplayName: "Ann", Email: "ann@example.com"}, claims.Principal())
	assert.Equal(t, 15*time.Minute, svc.AccessExpiry())
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", time.Minute).GenerateAccessToken(Principal{UID: "u1"})
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Minute).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Minute)

	token, err := svc.GenerateAccessToken(Principal{UID: "u1"})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService("test-secret", time.Minute).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTokenService_RevokedTokenIsRejected(t *testing.T) {
	svc := NewTokenService("test-secret", 15*time.Minute)

	revoked, err := svc.GenerateAccessToken(Principal{UID: "u1"})
	require.NoError(t, err)
	other, err := svc.GenerateAccessToken(Principal{UID: "u1"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(revoked)
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)
	svc.Revoke(claims)

	_, err = svc.ValidateAccessToken(revoked)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	_, err = svc.ValidateAccessToken(other)
	assert.NoError(t, err, "a fresh sign-in is unaffected")
}
