package services

import (
	"testing"
	"time"

	"casino-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(&config.Config{JWTSecret: "player-secret", ServiceJWTSecret: "service-secret"})

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.NotEmpty(t, claims.SessionID)

	_, err = svc.ValidateServiceToken(token)
	assert.Error(t, err, "player token must not pass as a service token")

	st, err := svc.GenerateServiceToken("mxe")
	require.NoError(t, err)
	sc, err := svc.ValidateServiceToken(st)
	require.NoError(t, err)
	assert.Equal(t, "mxe", sc.Service)

	_, err = svc.ValidateToken(st)
	assert.Error(t, err)
}

func TestJWTExpiry(t *testing.T) {
	svc := NewJWTService(&config.Config{JWTSecret: "player-secret"})
	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTWrongSecret(t *testing.T) {
	a := NewJWTService(&config.Config{JWTSecret: "a"})
	b := NewJWTService(&config.Config{JWTSecret: "b"})
	token, err := a.GenerateToken(1)
	require.NoError(t, err)
	_, err = b.ValidateToken(token)
	assert.Error(t, err)
}
