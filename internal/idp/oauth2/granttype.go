package oauth2

import (
	"context"
	"net/url"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

// Registered grant type names.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypePassword          = "password"
	GrantTypeJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Issuance is the instruction a grant handler emits after validating and
// consuming its grant. The token service turns it into stored tokens within
// the same transaction, so consumption and minting are atomic.
type Issuance struct {
	UserID   string // empty for client_credentials
	ClientID string
	Scopes   []string

	WithRefreshToken bool
	WithIDToken      bool

	// Nonce and AuthTime flow into the ID token when one is minted.
	Nonce    string
	AuthTime time.Time

	// ResourceServerID and Properties carry over from the authorizing
	// grant (refresh token, code) when present.
	ResourceServerID string
	Properties       map[string]string
}

// GrantHandler is one registered grant type. Handle validates the
// grant-specific parameters and performs the consumption side effect (mark
// code used, rotate refresh token) inside the supplied transaction.
type GrantHandler interface {
	GrantType() string

	// AssociatedResponseTypes lists the response types that can seed this
	// grant; empty means the grant is token-endpoint-only.
	AssociatedResponseTypes() []string

	Handle(ctx context.Context, tx store.Tx, client domain.Client, form url.Values) (*Issuance, error)
}

// GrantRegistry maps grant_type values to handlers. Registration happens at
// startup; lookups are read-only afterwards.
type GrantRegistry struct {
	handlers map[string]GrantHandler
	order    []string
}

func NewGrantRegistry(handlers ...GrantHandler) *GrantRegistry {
	r := &GrantRegistry{handlers: make(map[string]GrantHandler, len(handlers))}
	for _, h := range handlers {
		name := h.GrantType()
		if _, dup := r.handlers[name]; dup {
			panic("duplicate grant type registration: " + name)
		}
		r.handlers[name] = h
		r.order = append(r.order, name)
	}
	return r
}

// Resolve returns the handler for a grant_type value.
func (r *GrantRegistry) Resolve(grantType string) (GrantHandler, error) {
	h, ok := r.handlers[grantType]
	if !ok {
		return nil, ErrUnsupportedGrantType
	}
	return h, nil
}

// GrantTypes lists the registered names in registration order, for the
// discovery document.
func (r *GrantRegistry) GrantTypes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
