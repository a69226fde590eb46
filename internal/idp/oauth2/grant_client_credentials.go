package oauth2

import (
	"context"
	"net/url"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/httpx"
)

// ClientCredentialsGrant issues a token for the client itself. Public
// clients cannot use it: there is no credential to bind the token to.
type ClientCredentialsGrant struct {
	Scope *ScopePolicy
}

func (g *ClientCredentialsGrant) GrantType() string { return GrantTypeClientCredentials }

func (g *ClientCredentialsGrant) AssociatedResponseTypes() []string { return nil }

func (g *ClientCredentialsGrant) Handle(ctx context.Context, tx store.Tx, client domain.Client, form url.Values) (*Issuance, error) {
	if client.IsPublic() {
		return nil, ErrUnauthorizedClient.WithDescription("public clients cannot use client_credentials")
	}

	scopes, err := g.Scope.Resolve(httpx.ParseSpaceDelimitedFields(form.Get("scope")), &client)
	if err != nil {
		return nil, err
	}

	return &Issuance{
		ClientID: client.ID,
		Scopes:   scopes,
		// No refresh token: the client can always re-authenticate.
	}, nil
}
