package domain

import "time"

// AuthorizationCode is a short-lived, single-use credential minted by the
// code response type and redeemed at the token endpoint exactly once.
type AuthorizationCode struct {
	ID          string
	UserID      string
	ClientID    string
	CodeHash    string
	RedirectURI string
	Scopes      []string

	// Query preserves the original authorization request parameters so the
	// token endpoint can reproduce request-bound claims (e.g. nonce).
	Query map[string]string

	CodeChallenge       string
	CodeChallengeMethod string

	// WithRefreshToken marks that redeeming this code should also mint a
	// refresh token.
	WithRefreshToken bool

	Nonce    string
	AuthTime time.Time

	ExpiresAt time.Time
	UsedAt    *time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid reports whether the code may still be redeemed at the given time.
// used/revoked are monotone: once set they never clear.
func (c *AuthorizationCode) Valid(now time.Time) bool {
	return c.UsedAt == nil && !c.Revoked && now.Before(c.ExpiresAt)
}
