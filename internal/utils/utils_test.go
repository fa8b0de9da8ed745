package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"accountsvc/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)

	tok, err := ti.Issue("a@x.com", "user")
	require.NoError(t, err)

	claims, err := ti.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "user", claims.Kind)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	good, err := ti.Issue("a@x.com", "admin")
	require.NoError(t, err)

	expired := NewTokenIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("a@x.com", "admin")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"email": "a@x.com", "exp": time.Now().Add(time.Hour).Unix()})
	noneTok, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noEmail := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	noEmailTok, err := noEmail.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"other secret": mustIssue(t, NewTokenIssuer("other", time.Hour)),
		"expired":      old,
		"alg none":     noneTok,
		"no email":     noEmailTok,
		"tampered":     good[:len(good)-2] + "xx",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ti.Verify(tok)
			assert.True(t, errors.Is(err, models.ErrInvalidToken), "got %v", err)
		})
	}
}

func mustIssue(t *testing.T, ti *TokenIssuer) string {
	t.Helper()
	tok, err := ti.Issue("a@x.com", "")
	require.NoError(t, err)
	return tok
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)

	hash, err := h.Hash("p1")
	require.NoError(t, err)
	assert.NotEqual(t, "p1", hash)
	assert.True(t, h.Compare("p1", hash))
	assert.False(t, h.Compare("wrong", hash))
	assert.False(t, h.Compare("p1", "not-a-hash"))

	assert.Equal(t, 10, NewPasswordHasher(99).cost)

	_, err = h.Hash(strings.Repeat("p", MaxPasswordBytes))
	assert.NoError(t, err)
	_, err = h.Hash(strings.Repeat("p", MaxPasswordBytes+1))
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.EqualError(t, err, "password must be at most 72 bytes")
}

func TestGenerateOTP(t *testing.T) {
	for _, n := range []int{4, 6, 12} {
		code, err := GenerateOTP(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		assert.Empty(t, strings.Trim(code, "0123456789"))
	}
}

func TestHashOTP(t *testing.T) {
	assert.Equal(t, HashOTP("123456"), HashOTP(" 123456 "))
	assert.NotEqual(t, HashOTP("123456"), HashOTP("123457"))
	assert.NotContains(t, HashOTP("123456"), "123456")

	assert.True(t, OTPHashEqual(HashOTP("1"), HashOTP("1")))
	assert.False(t, OTPHashEqual(HashOTP("1"), HashOTP("2")))
}

func TestPlainText(t *testing.T) {
	tests := map[string]string{
		"Ann":                       "Ann",
		"  Ann  ":                   "Ann",
		"<b>Ann</b>":                "Ann",
		"Tom & Jerry":               "Tom & Jerry",
		"<script>alert(1)</script>": "",
		`<img src=x onerror="x">`:   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, PlainText(in), in)
	}
}
