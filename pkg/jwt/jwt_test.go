package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := NewJWTService(secret, time.Hour, 24*time.Hour)

	token, err := svc.GenerateAccessToken("5d6f1c1e-5b0a-4c55-9d43-6a1f3f0c2b11", "ops@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "5d6f1c1e-5b0a-4c55-9d43-6a1f3f0c2b11", claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)

	_, err = svc.ValidateRefreshToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_NotAccepted(t *testing.T) {
	svc := NewJWTService(secret, time.Hour, 24*time.Hour)
	token, err := svc.GenerateRefreshToken("u1", "a@b.c")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestValidateToken_Errors(t *testing.T) {
	svc := NewJWTService(secret, -time.Minute, time.Hour)
	token, err := svc.GenerateAccessToken("u1", "a@b.c")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService("another-secret-another-secret-xx", time.Hour, time.Hour)
	token, _ = other.GenerateAccessToken("u1", "a@b.c")
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
