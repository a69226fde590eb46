package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/tanukisoft/torii/pkg/idx"
)

var ErrNoKeys = errors.New("jwtx: key set is empty")

// KeySet holds the server's Ed25519 signing keys. Multiple keys let the
// server spread signing load and keep old keys available for verification
// after a rotation.
type KeySet struct {
	keys []signingKey
	next atomic.Uint64
}

type signingKey struct {
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEphemeralKeySet generates n fresh Ed25519 keys. Keys live for the
// process lifetime; ID tokens outliving a restart are verified against the
// published JWKS which callers should poll.
func NewEphemeralKeySet(n int) (*KeySet, error) {
	if n <= 0 {
		n = 1
	}

	ks := &KeySet{keys: make([]signingKey, 0, n)}
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate ed25519 key: %w", err)
		}
		ks.keys = append(ks.keys, signingKey{
			kid:  idx.New().String(),
			priv: priv,
			pub:  pub,
		})
	}
	return ks, nil
}

// Signer returns a signer for one of the keys, rotating through them so no
// single kid dominates issued tokens.
func (ks *KeySet) Signer() Signer {
	n := ks.next.Add(1)
	k := ks.keys[int(n)%len(ks.keys)]
	return &edDSASigner{key: k}
}

// PublicKey returns the public key for a kid, or false when unknown.
func (ks *KeySet) PublicKey(kid string) (ed25519.PublicKey, bool) {
	for _, k := range ks.keys {
		if k.kid == kid {
			return k.pub, true
		}
	}
	return nil, false
}

// KIDs lists the key identifiers in the set.
func (ks *KeySet) KIDs() []string {
	out := make([]string, 0, len(ks.keys))
	for _, k := range ks.keys {
		out = append(out, k.kid)
	}
	return out
}
