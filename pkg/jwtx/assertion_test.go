package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

func newTestKeyPair(t *testing.T, kid string) (ed25519.PrivateKey, []byte) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	key, err := jwk.FromRaw(pub)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))

	jwksJSON, err := json.Marshal(set)
	require.NoError(t, err)

	return priv, jwksJSON
}

func signTestAssertion(t *testing.T, priv ed25519.PrivateKey, kid string, claims AssertionClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func TestVerifyAssertionRoundTrip(t *testing.T) {
	t.Parallel()

	priv, jwksJSON := newTestKeyPair(t, "kid-1")

	claims := AssertionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "client-1",
		Subject:   "client-1",
		Audience:  jwt.ClaimStrings{"https://idp.example.com/token"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		ID:        "jti-1",
	}}

	assertion := signTestAssertion(t, priv, "kid-1", claims)

	got, err := VerifyAssertion(assertion, jwksJSON, nil, "https://idp.example.com/token")
	require.NoError(t, err)
	require.Equal(t, "client-1", got.Issuer)
	require.Equal(t, "jti-1", got.ID)
}

func TestVerifyAssertionRejectsExpired(t *testing.T) {
	t.Parallel()

	priv, jwksJSON := newTestKeyPair(t, "kid-1")

	claims := AssertionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "client-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	assertion := signTestAssertion(t, priv, "kid-1", claims)

	_, err := VerifyAssertion(assertion, jwksJSON, nil, "")
	require.ErrorIs(t, err, ErrAssertionInvalid)
}

func TestVerifyAssertionRejectsMissingExpiry(t *testing.T) {
	t.Parallel()

	priv, jwksJSON := newTestKeyPair(t, "kid-1")

	assertion := signTestAssertion(t, priv, "kid-1", AssertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "client-1"},
	})

	_, err := VerifyAssertion(assertion, jwksJSON, nil, "")
	require.ErrorIs(t, err, ErrAssertionInvalid)
}

func TestVerifyAssertionRejectsWrongAudience(t *testing.T) {
	t.Parallel()

	priv, jwksJSON := newTestKeyPair(t, "kid-1")

	claims := AssertionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "client-1",
		Audience:  jwt.ClaimStrings{"https://other.example"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	assertion := signTestAssertion(t, priv, "kid-1", claims)

	_, err := VerifyAssertion(assertion, jwksJSON, nil, "https://idp.example.com/token")
	require.ErrorIs(t, err, ErrAssertionInvalid)
}

func TestVerifyAssertionRejectsUnknownKID(t *testing.T) {
	t.Parallel()

	priv, _ := newTestKeyPair(t, "kid-1")
	_, otherJWKS := newTestKeyPair(t, "kid-2")

	claims := AssertionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "client-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	assertion := signTestAssertion(t, priv, "kid-1", claims)

	_, err := VerifyAssertion(assertion, otherJWKS, nil, "")
	require.Error(t, err)
}

func TestVerifyAssertionSingleKeyFallback(t *testing.T) {
	t.Parallel()

	priv, jwksJSON := newTestKeyPair(t, "kid-1")

	claims := AssertionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "client-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	// No kid header at all; the single key in the set should be used.
	assertion := signTestAssertion(t, priv, "", claims)

	_, err := VerifyAssertion(assertion, jwksJSON, nil, "")
	require.NoError(t, err)
}
