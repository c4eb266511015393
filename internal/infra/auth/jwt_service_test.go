package auth

import (
	"testing"
	"time"

	"customer/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *jwtService {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth = &config.AuthConfig{
		Secret:     "test-secret",
		ReadScope:  "customer:read",
		WriteScope: "customer:write",
	}

	svc, err := NewJWTService(cfg)
	require.NoError(t, err)

	concrete, ok := svc.(*jwtService)
	require.True(t, ok)

	return concrete
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth = &config.AuthConfig{}

	_, err := NewJWTService(cfg)
	assert.Error(t, err)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestService(t)

	tokenString, err := svc.GenerateToken("svc-order", []string{"customer:read", "customer:write"})
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := svc.ValidateToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "svc-order", claims.Subject)
	assert.True(t, claims.HasScope("customer:read"))
	assert.True(t, claims.HasScope("customer:write"))
	assert.False(t, claims.HasScope("customer:admin"))
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	svc := newTestService(t)

	other := &jwtService{secret: "other-secret", ttl: time.Minute}
	tokenString, err := other.GenerateToken("svc-order", nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	svc := newTestService(t)

	claims := jwt.MapClaims{
		"sub": "svc-order",
		"iat": time.Now().Add(-time.Hour).Unix(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(svc.secret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestJWTService_RejectsUnexpectedSigningMethod(t *testing.T) {
	svc := newTestService(t)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "svc-order"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}
