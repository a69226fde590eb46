package oauth2

import "strings"

// TokenTypeBearer is the only token type this server issues.
const TokenTypeBearer = "Bearer"

// ResolveTokenType normalizes a requested token type. An empty hint selects
// Bearer; anything else we do not issue.
func ResolveTokenType(hint string) (string, error) {
	switch strings.ToLower(hint) {
	case "", "bearer":
		return TokenTypeBearer, nil
	default:
		return "", ErrInvalidRequest.WithDescription("unsupported token type %q", hint)
	}
}

// Token type hints accepted by introspection and revocation (RFC 7662 §2.1,
// RFC 7009 §2.1 plus the authorization-code extension).
const (
	HintAccessToken       = "access_token"
	HintRefreshToken      = "refresh_token"
	HintAuthorizationCode = "authorization_code"
)

// HintOrder returns the lookup order for a token_type_hint: the hint first,
// then the remaining kinds. An empty hint yields the fixed default order.
// Unknown hints return ok=false.
func HintOrder(hint string) ([]string, bool) {
	all := []string{HintAccessToken, HintRefreshToken, HintAuthorizationCode}
	if hint == "" {
		return all, true
	}
	order := []string{hint}
	found := false
	for _, h := range all {
		if h == hint {
			found = true
			continue
		}
		order = append(order, h)
	}
	if !found {
		return nil, false
	}
	return order, true
}
