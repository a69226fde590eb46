package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/slogx"
)

// RevocationService implements RFC 7009. A token owned by a different
// client is an error, while a token that does not exist at all is a
// success with no state change.
type RevocationService struct {
	Store store.Store
	Auth  *oauth2.ClientAuthenticator
}

// Revoke resolves the presented token across the hint order and revokes it
// atomically. Revoking a refresh token cascades to the access tokens it
// minted.
func (s *RevocationService) Revoke(ctx context.Context, r *http.Request, form url.Values) error {
	ctx, span := tracer.Start(ctx, "revoke")
	defer span.End()

	l := slogx.FromContext(ctx)

	token := form.Get("token")
	if token == "" {
		return oauth2.ErrInvalidRequest.WithDescription("token is required")
	}

	hint := form.Get("token_type_hint")
	order, ok := oauth2.HintOrder(hint)
	if !ok {
		return oauth2.ErrUnsupportedTokenType
	}

	hash := cryptox.FingerprintToken(token)

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		client, err := s.Auth.Authenticate(ctx, tx, r, form)
		if err != nil {
			return err
		}

		for _, kind := range order {
			switch kind {
			case oauth2.HintAccessToken:
				at, err := tx.AccessTokens().GetAccessTokenByHash(ctx, hash)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return err
				}
				if at.ClientID != client.ID {
					return oauth2.ErrInvalidRequest.WithDescription("token was issued to another client")
				}
				if at.Revoked {
					return nil // idempotent
				}
				l.Info("access token revoked", "client_id", client.ID)
				return tx.AccessTokens().RevokeAccessToken(ctx, at.ID)

			case oauth2.HintRefreshToken:
				rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return err
				}
				if rt.ClientID != client.ID {
					return oauth2.ErrInvalidRequest.WithDescription("token was issued to another client")
				}
				if rt.Revoked {
					return nil
				}
				if err := tx.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
					return err
				}
				l.Info("refresh token revoked", "client_id", client.ID)
				// Cascade: everything this refresh token minted dies too.
				return tx.AccessTokens().RevokeAccessTokensByRefreshTokenID(ctx, rt.ID)

			case oauth2.HintAuthorizationCode:
				ac, err := tx.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, hash)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return err
				}
				if ac.ClientID != client.ID {
					return oauth2.ErrInvalidRequest.WithDescription("token was issued to another client")
				}
				if ac.Revoked {
					return nil
				}
				l.Info("authorization code revoked", "client_id", client.ID)
				return tx.AuthorizationCodes().RevokeAuthorizationCode(ctx, ac.ID)
			}
		}

		// Unknown token: success with no state change.
		return nil
	})
}
