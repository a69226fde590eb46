package domain

import "time"

// AccessToken is the stored record of an issued access token. The
// presentable token is opaque; only its SHA-256 fingerprint is stored.
type AccessToken struct {
	ID        string
	UserID    string // empty for client_credentials-issued tokens
	ClientID  string
	TokenHash string
	Scopes    []string

	// RefreshTokenID links back to the refresh token that minted this
	// access token, when there is one.
	RefreshTokenID string

	// ResourceServerID scopes introspection visibility: a non-empty value
	// makes the token visible only to that resource server.
	ResourceServerID string

	// Properties is an arbitrary metadata bag attached at issuance.
	Properties map[string]string

	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid reports whether the token is usable at the given time.
func (t *AccessToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// RefreshToken is the stored record of an issued refresh token.
type RefreshToken struct {
	ID               string
	UserID           string
	ClientID         string
	TokenHash        string
	Scopes           []string
	ResourceServerID string
	Properties       map[string]string

	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the token is usable at the given time.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// InitialAccessToken is a pre-provisioned credential that authorizes dynamic
// client registration.
type InitialAccessToken struct {
	ID        string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid reports whether the token may still authorize a registration.
func (t *InitialAccessToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// ResourceServer is a service allowed to call the introspection endpoint.
type ResourceServer struct {
	ID         string
	Name       string
	SecretHash string
	CreatedAt  time.Time
}

// TokenPair is what the token endpoint returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
