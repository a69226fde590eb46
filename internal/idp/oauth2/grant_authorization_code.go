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

// AuthorizationCodeGrant redeems a single-use authorization code for tokens.
type AuthorizationCodeGrant struct {
	// RejectUnmatchedVerifier makes a stray code_verifier (presented for a
	// code without a challenge) an error instead of being ignored.
	RejectUnmatchedVerifier bool
}

func (g *AuthorizationCodeGrant) GrantType() string { return GrantTypeAuthorizationCode }

func (g *AuthorizationCodeGrant) AssociatedResponseTypes() []string {
	return []string{ResponseTypeCode}
}

func (g *AuthorizationCodeGrant) Handle(ctx context.Context, tx store.Tx, client domain.Client, form url.Values) (*Issuance, error) {
	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	verifier := strings.TrimSpace(form.Get("code_verifier"))
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidRequest.WithDescription("code and redirect_uri are required")
	}

	ac, err := tx.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, cryptox.FingerprintToken(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	now := time.Now()
	if !ac.Valid(now) {
		return nil, ErrInvalidGrant
	}
	if ac.ClientID != client.ID {
		return nil, ErrInvalidGrant
	}
	// Exact string match, same as the authorization endpoint required.
	if ac.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant.WithDescription("redirect_uri does not match the authorization request")
	}

	if err := CheckCodeExchange(ac.CodeChallenge, ac.CodeChallengeMethod, verifier, g.RejectUnmatchedVerifier); err != nil {
		return nil, err
	}

	scopes := ac.Scopes
	if requested := httpx.ParseSpaceDelimitedFields(form.Get("scope")); len(requested) > 0 {
		if !ScopesCovered(ac.Scopes, requested) {
			return nil, ErrInvalidScope
		}
		scopes = requested
	}

	// Single-use gate. Exactly one concurrent redeemer passes.
	if err := tx.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, ac.ID); err != nil {
		if errors.Is(err, store.ErrAlreadyUsed) || errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	return &Issuance{
		UserID:           ac.UserID,
		ClientID:         client.ID,
		Scopes:           scopes,
		WithRefreshToken: ac.WithRefreshToken,
		WithIDToken:      HasScope(scopes, "openid"),
		Nonce:            ac.Nonce,
		AuthTime:         ac.AuthTime,
	}, nil
}
