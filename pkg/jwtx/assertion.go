package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	ErrAssertionMalformed = errors.New("jwtx: malformed assertion")
	ErrAssertionKey       = errors.New("jwtx: no usable verification key for assertion")
	ErrAssertionInvalid   = errors.New("jwtx: assertion failed verification")
)

// DefaultAssertionAlgs are accepted when a client or trusted issuer has not
// restricted the algorithms for its signed assertions.
var DefaultAssertionAlgs = []string{"RS256", "ES256", "EdDSA"}

// AssertionClaims is the claim set of a signed JWT assertion, as used by
// private_key_jwt client authentication and the jwt-bearer grant.
type AssertionClaims struct {
	jwt.RegisteredClaims
}

// PeekIssuer reads the iss claim of an assertion WITHOUT verifying the
// signature. Only useful to locate the key material; never trust the result
// until VerifyAssertion has passed.
func PeekIssuer(assertion string) (string, error) {
	claims := &AssertionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(assertion, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssertionMalformed, err)
	}
	if claims.Issuer == "" {
		return "", ErrAssertionMalformed
	}
	return claims.Issuer, nil
}

// VerifyAssertion parses and verifies a JWT assertion against a JWKS
// document (RFC 7517 JSON). The expected audience is enforced when
// non-empty; exp is always required. Key selection follows the "kid"
// header, falling back to the sole key of a single-key set.
func VerifyAssertion(assertion string, jwksJSON []byte, allowedAlgs []string, audience string) (*AssertionClaims, error) {
	if assertion == "" || len(jwksJSON) == 0 {
		return nil, ErrAssertionMalformed
	}

	set, err := jwk.Parse(jwksJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertionKey, err)
	}

	if len(allowedAlgs) == 0 {
		allowedAlgs = DefaultAssertionAlgs
	}

	keyfunc := func(t *jwt.Token) (any, error) {
		var key jwk.Key
		if kid, ok := t.Header["kid"].(string); ok && kid != "" {
			k, found := set.LookupKeyID(kid)
			if !found {
				return nil, ErrAssertionKey
			}
			key = k
		} else if set.Len() == 1 {
			k, _ := set.Key(0)
			key = k
		} else {
			return nil, ErrAssertionKey
		}

		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssertionKey, err)
		}
		return raw, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedAlgs),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &AssertionClaims{}
	tok, err := jwt.ParseWithClaims(assertion, claims, keyfunc, opts...)
	if err != nil {
		if errors.Is(err, ErrAssertionKey) {
			return nil, ErrAssertionKey
		}
		return nil, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrAssertionInvalid
	}

	return claims, nil
}
