package domain

import (
	"slices"
	"strings"
	"time"
)

// Token endpoint authentication methods a client can register.
const (
	AuthMethodNone          = "none"
	AuthMethodSecretBasic   = "client_secret_basic"
	AuthMethodSecretPost    = "client_secret_post"
	AuthMethodPrivateKeyJWT = "private_key_jwt"
)

// Client is a registered OAuth2/OIDC relying party.
type Client struct {
	ID         string
	Name       string
	SecretHash string // empty for public clients

	// TokenAuthMethod is the single authentication method the client
	// registered for the token endpoint. Exactly one method applies.
	TokenAuthMethod string

	GrantTypes    []string
	ResponseTypes []string
	RedirectURIs  []string

	// RequestURIs are pre-registered URI prefixes; a redirect_uri matching
	// one of these prefixes is accepted even without an exact match.
	RequestURIs []string

	Scopes []string

	// JWKS holds the client's registered public keys (RFC 7517 JSON) for
	// private_key_jwt authentication and jwt-bearer assertions.
	JWKS string

	// AssertionAlgs restricts which JWS algorithms the client's signed
	// assertions may use. Empty means the server defaults.
	AssertionAlgs []string

	// RegistrationTokenHash guards the /configure management endpoints.
	RegistrationTokenHash string

	// OwnerUserID is the account that registered the client dynamically.
	OwnerUserID string

	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPublic reports whether the client authenticates without a credential.
func (c *Client) IsPublic() bool {
	return c.TokenAuthMethod == AuthMethodNone
}

// AllowsGrantType reports whether the grant type is in the client's
// registered set.
func (c *Client) AllowsGrantType(grantType string) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// AllowsResponseType reports whether the exact response_type value (compound
// values included, e.g. "code id_token") is registered for the client.
func (c *Client) AllowsResponseType(responseType string) bool {
	want := normalizeResponseType(responseType)
	for _, rt := range c.ResponseTypes {
		if normalizeResponseType(rt) == want {
			return true
		}
	}
	return false
}

// AllowsRedirectURI checks a redirect_uri against the registered URIs.
// Matching is exact string comparison; the sole exception is pre-registered
// request_uris, which match by prefix.
func (c *Client) AllowsRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}
	if slices.Contains(c.RedirectURIs, uri) {
		return true
	}
	for _, prefix := range c.RequestURIs {
		if prefix != "" && strings.HasPrefix(uri, prefix) {
			return true
		}
	}
	return false
}

// normalizeResponseType sorts the space-delimited members so "code id_token"
// and "id_token code" compare equal.
func normalizeResponseType(rt string) string {
	parts := strings.Fields(strings.TrimSpace(rt))
	slices.Sort(parts)
	return strings.Join(parts, " ")
}
