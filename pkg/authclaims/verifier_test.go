package authclaims_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/boundary/pkg/authclaims"
)

var secret = []byte("test-secret-test-secret-test-secret")

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := authclaims.NewVerifier(nil)
	assert.ErrorIs(t, err, authclaims.ErrMissingSecret)
}

func TestVerifier_SignAndVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v, err := authclaims.NewVerifier(secret, authclaims.WithClock(fixedClock(now)))
	require.NoError(t, err)

	token, err := v.Sign(map[string]any{"sub": "user-1", "tid": "acme"}, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "acme", claims["tid"])
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"tid": "acme",
			"iss": "idp",
			"aud": "boundary",
			"exp": now.Add(time.Hour).Unix(),
		}
	}

	v, err := authclaims.NewVerifier(secret,
		authclaims.WithIssuer("idp"),
		authclaims.WithAudience("boundary"),
		authclaims.WithLeeway(0),
		authclaims.WithClock(fixedClock(now)))
	require.NoError(t, err)

	_, err = v.Verify(sign(t, jwt.SigningMethodHS256, secret, valid()))
	require.NoError(t, err)

	expired := valid()
	expired["exp"] = now.Add(-time.Minute).Unix()

	noExp := valid()
	delete(noExp, "exp")

	wrongIssuer := valid()
	wrongIssuer["iss"] = "someone-else"

	wrongAudience := valid()
	wrongAudience["aud"] = "other-app"

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "empty", token: ""},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("another-secret"), valid())},
		{name: "wrong algorithm", token: sign(t, jwt.SigningMethodHS512, secret, valid())},
		{name: "unsigned", token: sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, secret, expired)},
		{name: "no expiry", token: sign(t, jwt.SigningMethodHS256, secret, noExp)},
		{name: "wrong issuer", token: sign(t, jwt.SigningMethodHS256, secret, wrongIssuer)},
		{name: "wrong audience", token: sign(t, jwt.SigningMethodHS256, secret, wrongAudience)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, authclaims.ErrInvalidToken)
		})
	}
}

func TestVerifier_Leeway(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(-10 * time.Second).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	strict, err := authclaims.NewVerifier(secret, authclaims.WithClock(fixedClock(now)))
	require.NoError(t, err)
	_, err = strict.Verify(token)
	assert.ErrorIs(t, err, authclaims.ErrInvalidToken)

	lenient, err := authclaims.NewVerifier(secret,
		authclaims.WithLeeway(30*time.Second),
		authclaims.WithClock(fixedClock(now)))
	require.NoError(t, err)
	_, err = lenient.Verify(token)
	assert.NoError(t, err)
}
