package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnknownKID = errors.New("jwtx: unknown kid")
	ErrInvalidSig = errors.New("jwtx: invalid token")
)

// VerifyIDToken checks an ID token signed by this key set. It is used by the
// authorization flow to honor id_token_hint, and by tests.
func (ks *KeySet) VerifyIDToken(token, issuer string) (*IDTokenClaims, error) {
	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pub, ok := ks.PublicKey(kid)
		if !ok {
			return nil, ErrUnknownKID
		}
		return pub, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"EdDSA"}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &IDTokenClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, keyfunc, opts...)
	if err != nil {
		if errors.Is(err, ErrUnknownKID) {
			return nil, ErrUnknownKID
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidSig
	}

	return claims, nil
}
