package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(testAccessSecret, "user-1", "9876543210", "Farmer", 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 2*time.Second)

	claims, err := VerifyAccessToken(testAccessSecret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "9876543210", claims.Contact)
	assert.Equal(t, "Farmer", claims.Role)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	tok, err := NewRefreshToken(testRefreshSecret, "user-2", "farmer@example.com", "Buyer", "7d")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), tok.Exp, 2*time.Second)

	claims, err := VerifyRefreshToken(testRefreshSecret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserID)
	assert.Equal(t, "Buyer", claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := NewAccessToken(testAccessSecret, "user-1", "9876543210", "Farmer", 15)
	require.NoError(t, err)

	_, err = VerifyAccessToken("some-other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsCrossKindUse(t *testing.T) {
	// A refresh token must not pass verification against the access secret.
	refresh, err := NewRefreshToken(testRefreshSecret, "user-1", "9876543210", "Farmer", "7d")
	require.NoError(t, err)

	_, err = VerifyAccessToken(testAccessSecret, refresh.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	signed, err := signClaims(testAccessSecret, "user-1", "9876543210", "Farmer",
		time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = VerifyAccessToken(testAccessSecret, signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := VerifyAccessToken(testAccessSecret, raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", raw)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyAccessToken(testAccessSecret, signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "Farmer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = VerifyAccessToken(testAccessSecret, signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshExpiry(t *testing.T) {
	cases := []struct {
		expr string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"45m", 45 * time.Minute},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := RefreshExpiry(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.WithinDuration(t, time.Now().UTC().Add(tc.want), got, 2*time.Second, tc.expr)
	}
}

func TestRefreshExpiryRejectsMalformed(t *testing.T) {
	for _, expr := range []string{"", "7", "d", "7w", "-7d", "7 d", "7dd"} {
		_, err := RefreshExpiry(expr)
		assert.Error(t, err, expr)
	}
}

func TestHashRefreshRaw(t *testing.T) {
	a := HashRefreshRaw("token-a")
	b := HashRefreshRaw("token-b")

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashRefreshRaw("token-a"))
}
