package jwtx

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims are the claims embedded in OpenID Connect ID tokens.
type IDTokenClaims struct {
	jwt.RegisteredClaims

	// Nonce echoes the value the client sent on the authorization request,
	// binding the ID token to that request.
	Nonce string `json:"nonce,omitempty"`

	// AuthTime is when the end user last authenticated (unix seconds).
	AuthTime int64 `json:"auth_time,omitempty"`

	// AtHash and CHash are the OIDC Core half-hashes over the access token
	// and authorization code issued alongside this ID token.
	AtHash string `json:"at_hash,omitempty"`
	CHash  string `json:"c_hash,omitempty"`
}

// NewIDTokenClaims builds minimally-correct ID token claims.
func NewIDTokenClaims(issuer, subject, clientID, nonce string, authTime time.Time, ttl time.Duration, now time.Time) IDTokenClaims {
	c := IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Nonce: nonce,
	}
	if !authTime.IsZero() {
		c.AuthTime = authTime.Unix()
	}
	return c
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	readRand(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HalfHash computes the OIDC at_hash/c_hash value: the left half of the
// SHA-256 digest, base64url-encoded. SHA-256 is correct for EdDSA (Ed25519)
// signed ID tokens per OIDC Core 3.1.3.6 as applied to 256-bit curves.
func HalfHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
