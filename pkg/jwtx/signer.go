package jwtx

import (
	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
}

type edDSASigner struct {
	key signingKey
}

func (s *edDSASigner) Alg() string { return "EdDSA" }
func (s *edDSASigner) KID() string { return s.key.kid }

func (s *edDSASigner) Sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = s.key.kid
	return tok.SignedString(s.key.priv)
}
