package oauth2

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePKCEMethod(t *testing.T) {
	t.Parallel()

	t.Run("defaults to plain when omitted", func(t *testing.T) {
		method, err := NormalizePKCEMethod("")
		require.NoError(t, err)
		require.Equal(t, PKCEMethodPlain, method)
	})

	t.Run("accepts plain and S256", func(t *testing.T) {
		for _, m := range []string{PKCEMethodPlain, PKCEMethodS256} {
			method, err := NormalizePKCEMethod(m)
			require.NoError(t, err)
			require.Equal(t, m, method)
		}
	})

	t.Run("rejects unknown methods", func(t *testing.T) {
		_, err := NormalizePKCEMethod("S512")
		require.Error(t, err)
		require.Equal(t, ErrorCodeInvalidRequest, AsError(err).Code)
	})
}

func TestVerifyPKCE(t *testing.T) {
	t.Parallel()

	t.Run("S256 round trip", func(t *testing.T) {
		verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		sum := sha256.Sum256([]byte(verifier))
		challenge := base64.RawURLEncoding.EncodeToString(sum[:])

		require.True(t, VerifyPKCE(challenge, PKCEMethodS256, verifier))
		require.False(t, VerifyPKCE(challenge, PKCEMethodS256, verifier+"x"))
	})

	t.Run("plain compares directly", func(t *testing.T) {
		require.True(t, VerifyPKCE("abc123", PKCEMethodPlain, "abc123"))
		require.False(t, VerifyPKCE("abc123", PKCEMethodPlain, "abc124"))
	})

	t.Run("unknown method never verifies", func(t *testing.T) {
		require.False(t, VerifyPKCE("abc", "md5", "abc"))
	})
}

func TestCheckCodeExchange(t *testing.T) {
	t.Parallel()

	verifier := "some-long-enough-verifier-value-42"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	t.Run("protected code requires verifier", func(t *testing.T) {
		err := CheckCodeExchange(challenge, PKCEMethodS256, "", false)
		require.Error(t, err)
		require.Equal(t, ErrorCodeInvalidGrant, AsError(err).Code)
	})

	t.Run("protected code rejects wrong verifier", func(t *testing.T) {
		err := CheckCodeExchange(challenge, PKCEMethodS256, "wrong", false)
		require.Error(t, err)
		require.Equal(t, ErrorCodeInvalidGrant, AsError(err).Code)
	})

	t.Run("protected code accepts matching verifier", func(t *testing.T) {
		require.NoError(t, CheckCodeExchange(challenge, PKCEMethodS256, verifier, false))
	})

	t.Run("stray verifier ignored by default", func(t *testing.T) {
		require.NoError(t, CheckCodeExchange("", "", verifier, false))
	})

	t.Run("stray verifier rejected when policy demands", func(t *testing.T) {
		err := CheckCodeExchange("", "", verifier, true)
		require.Error(t, err)
		require.Equal(t, ErrorCodeInvalidGrant, AsError(err).Code)
	})
}
