package oauth2

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE challenge methods per RFC 7636. The method defaults to plain when the
// authorization request carries a challenge without naming a method.
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// NormalizePKCEMethod validates the code_challenge_method parameter and
// applies the plain default. An unsupported name is invalid_request.
func NormalizePKCEMethod(method string) (string, error) {
	switch method {
	case "":
		return PKCEMethodPlain, nil
	case PKCEMethodPlain, PKCEMethodS256:
		return method, nil
	default:
		return "", ErrInvalidRequest.WithDescription("unsupported code_challenge_method %q", method)
	}
}

// VerifyPKCE checks a code_verifier against the challenge recorded on the
// authorization code. Comparison is constant-time in both branches.
func VerifyPKCE(challenge, method, verifier string) bool {
	switch method {
	case PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}

// CheckCodeExchange applies the PKCE rules at redemption time:
//   - protected code, missing verifier  -> invalid_grant
//   - protected code, wrong verifier    -> invalid_grant
//   - unprotected code, verifier given  -> ignored, unless rejectUnmatched
//     makes a stray verifier an error.
func CheckCodeExchange(challenge, method, verifier string, rejectUnmatched bool) error {
	if challenge == "" {
		if verifier != "" && rejectUnmatched {
			return ErrInvalidGrant.WithDescription("code_verifier provided for a code without a challenge")
		}
		return nil
	}
	if verifier == "" {
		return ErrInvalidGrant.WithDescription("code_verifier is required")
	}
	if !VerifyPKCE(challenge, method, verifier) {
		return ErrInvalidGrant.WithDescription("code_verifier does not match the challenge")
	}
	return nil
}
