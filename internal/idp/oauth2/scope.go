package oauth2

import (
	"slices"

	"github.com/tanukisoft/torii/internal/idp/domain"
)

// ScopePolicy decides what happens when a request arrives without a scope
// parameter. Policies are tried in a fixed priority order and the first
// applicable one wins: none (reject), default (substitute), error (reject
// explicitly). With a non-empty default set the default policy applies;
// otherwise requests lacking scope are rejected.
type ScopePolicy struct {
	// Supported is the full server-side scope vocabulary. Empty means
	// every client-registered scope is acceptable.
	Supported []string

	// Defaults is substituted when a request carries no scope parameter.
	Defaults []string
}

// Resolve narrows the requested scopes against the client registration and
// the server vocabulary. A nil/empty request falls through the policy chain.
func (p *ScopePolicy) Resolve(requested []string, client *domain.Client) ([]string, error) {
	if len(requested) == 0 {
		if len(p.Defaults) == 0 {
			return nil, ErrInvalidScope.WithDescription("scope parameter is required")
		}
		requested = p.Defaults
	}

	for _, s := range requested {
		if !p.IsSupported(s) {
			return nil, ErrInvalidScope.WithDescription("unknown scope %q", s)
		}
		if len(client.Scopes) > 0 && !slices.Contains(client.Scopes, s) {
			return nil, ErrInvalidScope.WithDescription("scope %q is not registered for the client", s)
		}
	}
	return requested, nil
}

// IsSupported reports whether a scope is in the server vocabulary.
func (p *ScopePolicy) IsSupported(scope string) bool {
	if len(p.Supported) == 0 {
		return true
	}
	return slices.Contains(p.Supported, scope)
}

// ScopesCovered reports whether every requested scope is within granted.
// Used to enforce narrowing on code redemption and refresh.
func ScopesCovered(granted, requested []string) bool {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}

// HasScope reports whether the set contains a scope.
func HasScope(scopes []string, scope string) bool {
	return slices.Contains(scopes, scope)
}
