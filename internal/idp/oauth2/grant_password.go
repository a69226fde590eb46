package oauth2

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/httpx"
)

// PasswordGrant validates resource owner credentials directly. Only clients
// explicitly registered for the grant (trusted first-party apps) reach this
// handler; the registration check happens in the token pipeline.
type PasswordGrant struct {
	Scope *ScopePolicy
}

func (g *PasswordGrant) GrantType() string { return GrantTypePassword }

func (g *PasswordGrant) AssociatedResponseTypes() []string { return nil }

func (g *PasswordGrant) Handle(ctx context.Context, tx store.Tx, client domain.Client, form url.Values) (*Issuance, error) {
	username := strings.TrimSpace(form.Get("username"))
	password := form.Get("password")
	if username == "" || password == "" {
		return nil, ErrInvalidRequest.WithDescription("username and password are required")
	}

	user, err := tx.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same error as a wrong password, no account probing.
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if err := cryptox.VerifySecret(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidGrant
	}

	scopes, err := g.Scope.Resolve(httpx.ParseSpaceDelimitedFields(form.Get("scope")), &client)
	if err != nil {
		return nil, err
	}

	return &Issuance{
		UserID:           user.ID,
		ClientID:         client.ID,
		Scopes:           scopes,
		WithRefreshToken: client.AllowsGrantType(GrantTypeRefreshToken),
		WithIDToken:      HasScope(scopes, "openid"),
		AuthTime:         time.Now(),
	}, nil
}
