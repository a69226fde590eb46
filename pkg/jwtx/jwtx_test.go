package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyIDToken(t *testing.T) {
	t.Parallel()

	ks, err := NewEphemeralKeySet(2)
	require.NoError(t, err)

	now := time.Now()
	claims := NewIDTokenClaims(
		"https://idp.example.com", "user-1", "client-1", "nonce-abc",
		now.Add(-time.Minute), time.Hour, now,
	)
	claims.AtHash = HalfHash("some-access-token")

	signer := ks.Signer()
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := ks.VerifyIDToken(token, "https://idp.example.com")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "nonce-abc", got.Nonce)
	require.Equal(t, claims.AtHash, got.AtHash)
	require.NotZero(t, got.AuthTime)
}

func TestVerifyIDTokenRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	ks, err := NewEphemeralKeySet(1)
	require.NoError(t, err)

	claims := NewIDTokenClaims("https://a.example", "u", "c", "", time.Time{}, time.Hour, time.Now())
	token, err := ks.Signer().Sign(claims)
	require.NoError(t, err)

	_, err = ks.VerifyIDToken(token, "https://b.example")
	require.Error(t, err)
}

func TestVerifyIDTokenRejectsForeignKey(t *testing.T) {
	t.Parallel()

	ours, err := NewEphemeralKeySet(1)
	require.NoError(t, err)
	theirs, err := NewEphemeralKeySet(1)
	require.NoError(t, err)

	claims := NewIDTokenClaims("iss", "u", "c", "", time.Time{}, time.Hour, time.Now())
	token, err := theirs.Signer().Sign(claims)
	require.NoError(t, err)

	_, err = ours.VerifyIDToken(token, "iss")
	require.ErrorIs(t, err, ErrUnknownKID)
}

func TestSignerRotatesKIDs(t *testing.T) {
	t.Parallel()

	ks, err := NewEphemeralKeySet(3)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 9; i++ {
		seen[ks.Signer().KID()] = true
	}
	require.Len(t, seen, 3)
}

func TestJWKSContainsAllKeys(t *testing.T) {
	t.Parallel()

	ks, err := NewEphemeralKeySet(2)
	require.NoError(t, err)

	doc := ks.JWKS()
	require.Len(t, doc.Keys, 2)
	for _, k := range doc.Keys {
		require.Equal(t, "OKP", k.Kty)
		require.Equal(t, "Ed25519", k.Crv)
		require.Equal(t, "EdDSA", k.Alg)
		require.Equal(t, "sig", k.Use)
		require.NotEmpty(t, k.X)
		require.NotEmpty(t, k.Kid)
	}
}

func TestHalfHashLength(t *testing.T) {
	t.Parallel()

	// 16 bytes base64url, no padding.
	require.Len(t, HalfHash("anything"), 22)
	require.Equal(t, HalfHash("a"), HalfHash("a"))
	require.NotEqual(t, HalfHash("a"), HalfHash("b"))
}
