package service

import (
	"context"
	"testing"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/idx"

	"github.com/stretchr/testify/require"
)

func seedInitialAccessToken(t *testing.T, svc *RegistrationService) string {
	t.Helper()
	plain := cryptox.MustGenerateToken(cryptox.TokenSize256)
	now := time.Now()
	iat := domain.InitialAccessToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(plain),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	require.NoError(t, svc.Store.InitialAccessTokens().CreateInitialAccessToken(context.Background(), iat))
	return plain
}

func TestDynamicRegistration(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &RegistrationService{
		Store:  st,
		Scope:  &oauth2.ScopePolicy{Supported: []string{"openid", "profile", "email"}},
		Issuer: testIssuer,
	}

	meta := ClientMetadata{
		ClientName:   "fresh-rp",
		RedirectURIs: []string{"https://rp.example.com/cb"},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		Scope:        "openid profile",
	}

	t.Run("requires an initial access token", func(t *testing.T) {
		_, err := svc.Register(ctx, "", meta)
		require.Equal(t, oauth2.ErrorCodeInvalidClient, oauth2.AsError(err).Code)

		_, err = svc.Register(ctx, "bogus", meta)
		require.Equal(t, oauth2.ErrorCodeInvalidClient, oauth2.AsError(err).Code)
	})

	iat := seedInitialAccessToken(t, svc)

	var created *ClientInformation
	t.Run("creates the client and returns the secret once", func(t *testing.T) {
		var err error
		created, err = svc.Register(ctx, iat, meta)
		require.NoError(t, err)
		require.NotEmpty(t, created.ClientID)
		require.NotEmpty(t, created.ClientSecret)
		require.NotEmpty(t, created.RegistrationAccessToken)
		require.Equal(t, "client_secret_basic", created.TokenEndpointAuthMethod)
		require.Contains(t, created.RegistrationClientURI, "/configure/"+created.ClientID)

		stored, err := st.Clients().GetClientByID(ctx, created.ClientID)
		require.NoError(t, err)
		require.NoError(t, cryptox.VerifySecret(created.ClientSecret, stored.SecretHash))
		require.Equal(t, []string{"code"}, stored.ResponseTypes, "code response type defaulted")
	})

	t.Run("rejects unknown scopes", func(t *testing.T) {
		bad := meta
		bad.Scope = "openid admin"
		_, err := svc.Register(ctx, iat, bad)
		require.Equal(t, oauth2.ErrorCodeInvalidScope, oauth2.AsError(err).Code)
	})

	t.Run("rejects missing redirect_uris", func(t *testing.T) {
		bad := meta
		bad.RedirectURIs = nil
		_, err := svc.Register(ctx, iat, bad)
		require.Equal(t, oauth2.ErrorCodeInvalidRequest, oauth2.AsError(err).Code)
	})

	t.Run("management read requires the registration token", func(t *testing.T) {
		_, err := svc.Get(ctx, created.ClientID, "wrong")
		require.Equal(t, oauth2.ErrorCodeInvalidClient, oauth2.AsError(err).Code)

		info, err := svc.Get(ctx, created.ClientID, created.RegistrationAccessToken)
		require.NoError(t, err)
		require.Equal(t, "fresh-rp", info.ClientName)
		require.Empty(t, info.ClientSecret, "secret never comes back on reads")
	})

	t.Run("update replaces redirect uris", func(t *testing.T) {
		updated := meta
		updated.RedirectURIs = []string{"https://rp.example.com/cb", "https://rp.example.com/cb2"}
		info, err := svc.Update(ctx, created.ClientID, created.RegistrationAccessToken, updated)
		require.NoError(t, err)
		require.Len(t, info.RedirectURIs, 2)

		stored, err := st.Clients().GetClientByID(ctx, created.ClientID)
		require.NoError(t, err)
		require.Len(t, stored.RedirectURIs, 2)
	})

	t.Run("update cannot switch auth method", func(t *testing.T) {
		flip := meta
		flip.TokenEndpointAuthMethod = domain.AuthMethodNone
		_, err := svc.Update(ctx, created.ClientID, created.RegistrationAccessToken, flip)
		require.Equal(t, oauth2.ErrorCodeInvalidRequest, oauth2.AsError(err).Code)
	})

	t.Run("delete soft-deletes", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, created.ClientID, created.RegistrationAccessToken))

		stored, err := st.Clients().GetClientByID(ctx, created.ClientID)
		require.NoError(t, err)
		require.True(t, stored.Deleted)

		// Management on a deleted client fails.
		_, err = svc.Get(ctx, created.ClientID, created.RegistrationAccessToken)
		require.Equal(t, oauth2.ErrorCodeInvalidClient, oauth2.AsError(err).Code)
	})
}
