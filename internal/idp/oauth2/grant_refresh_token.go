package oauth2

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/httpx"
)

// RefreshTokenGrant exchanges a refresh token for a fresh access token,
// optionally rotating the refresh token itself.
type RefreshTokenGrant struct {
	// Rotate revokes the presented refresh token and instructs the minter
	// to issue a replacement. When false the old token stays valid and the
	// response carries no refresh_token.
	Rotate bool
}

func (g *RefreshTokenGrant) GrantType() string { return GrantTypeRefreshToken }

func (g *RefreshTokenGrant) AssociatedResponseTypes() []string { return nil }

func (g *RefreshTokenGrant) Handle(ctx context.Context, tx store.Tx, client domain.Client, form url.Values) (*Issuance, error) {
	presented := form.Get("refresh_token")
	if presented == "" {
		return nil, ErrInvalidRequest.WithDescription("refresh_token is required")
	}

	rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(presented))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if !rt.Valid(time.Now()) {
		return nil, ErrInvalidGrant
	}
	if rt.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}

	// Omitted scope reuses the original grant; anything wider is refused.
	scopes := rt.Scopes
	if requested := httpx.ParseSpaceDelimitedFields(form.Get("scope")); len(requested) > 0 {
		if !ScopesCovered(rt.Scopes, requested) {
			return nil, ErrInvalidScope
		}
		scopes = requested
	}

	if g.Rotate {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
			return nil, err
		}
	}

	return &Issuance{
		UserID:           rt.UserID,
		ClientID:         client.ID,
		Scopes:           scopes,
		WithRefreshToken: g.Rotate,
		WithIDToken:      HasScope(scopes, "openid") && rt.UserID != "",
		ResourceServerID: rt.ResourceServerID,
		Properties:       rt.Properties,
	}, nil
}
