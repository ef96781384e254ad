package services

import (
	"testing"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	service, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", testSecret)
	require.NoError(t, err)
	return service
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		ttl         time.Duration
		secretKey   string
		expectError bool
	}{
		{name: "valid configuration", ttl: time.Minute, secretKey: testSecret},
		{name: "missing secret key", ttl: time.Minute, secretKey: "", expectError: true},
		{name: "non-positive ttl", ttl: 0, secretKey: testSecret, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(tt.ttl, "iss", "aud", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := createTestTokenService(t)

	tests := []struct {
		name    string
		subject string
		role    string
	}{
		{name: "producer", subject: "batcher-1", role: utils.RoleProducer},
		{name: "admin", subject: "ops", role: utils.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := service.GenerateToken(tt.subject, tt.role)
			require.NoError(t, err)
			assert.Contains(t, token, "eyJ")

			claims, err := service.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.NotEmpty(t, claims.TokenID)
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestGenerateTokenRejectsBadInput(t *testing.T) {
	service := createTestTokenService(t)

	_, err := service.GenerateToken("", utils.RoleProducer)
	assert.Error(t, err)

	_, err = service.GenerateToken("someone", "superuser")
	assert.Error(t, err)
}

func TestValidateTokenFailures(t *testing.T) {
	service := createTestTokenService(t)

	sign := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	now := time.Now()
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":  "batcher-1",
			"role": utils.RoleProducer,
			"jti":  "abc",
			"iat":  now.Unix(),
			"exp":  now.Add(time.Hour).Unix(),
			"iss":  "test-issuer",
			"aud":  "test-audience",
		}
	}

	expired := base()
	expired["iat"] = now.Add(-2 * time.Hour).Unix()
	expired["exp"] = now.Add(-time.Hour).Unix()

	wrongIssuer := base()
	wrongIssuer["iss"] = "someone-else"

	wrongAudience := base()
	wrongAudience["aud"] = "other-api"

	missingSubject := base()
	delete(missingSubject, "sub")

	tests := []struct {
		name     string
		token    string
		expected error
	}{
		{name: "empty token", token: "", expected: ErrTokenInvalid},
		{name: "garbage", token: "invalid.token.format", expected: ErrTokenInvalid},
		{name: "wrong secret", token: sign("another-secret-key-that-is-32-chars!", base()), expected: ErrTokenInvalid},
		{name: "expired", token: sign(testSecret, expired), expected: ErrTokenExpired},
		{name: "wrong issuer", token: sign(testSecret, wrongIssuer), expected: ErrTokenInvalid},
		{name: "wrong audience", token: sign(testSecret, wrongAudience), expected: ErrTokenInvalid},
		{name: "missing subject", token: sign(testSecret, missingSubject), expected: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, claims)
		})
	}
}
