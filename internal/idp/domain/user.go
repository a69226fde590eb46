package domain

import "time"

// UserAccount is a resource owner.
type UserAccount struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Consent records that a user approved a client for a set of scopes.
// A stored consent lets later authorization requests skip the consent
// screen unless prompt=consent forces a re-prompt.
type Consent struct {
	UserID    string
	ClientID  string
	Scopes    []string
	GrantedAt time.Time
}

// Covers reports whether this consent covers every requested scope.
func (c *Consent) Covers(requested []string) bool {
	have := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		have[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}
