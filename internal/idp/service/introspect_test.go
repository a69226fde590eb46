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

func TestIntrospection(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tokens := newTokenService(t, st)
	svc := &IntrospectionService{Store: st, Issuer: testIssuer}

	client := seedClient(t, st)
	user := seedUser(t, st)

	code := seedCode(t, st, client, user, nil)
	pair, err := tokens.Exchange(ctx, tokenRequest(client, testClientSecret), form(
		"grant_type", "authorization_code",
		"code", code,
		"redirect_uri", testRedirectURI,
	))
	require.NoError(t, err)

	t.Run("active access token returns full claims", func(t *testing.T) {
		resp, err := svc.Introspect(ctx, "", pair.AccessToken, "")
		require.NoError(t, err)
		require.True(t, resp.Active)
		require.Equal(t, client.ID, resp.ClientID)
		require.Equal(t, user.ID, resp.Sub)
		require.Equal(t, "openid profile", resp.Scope)
		require.Equal(t, testIssuer, resp.Iss)
		require.Equal(t, "Bearer", resp.TokenType)
	})

	t.Run("refresh token found via hint", func(t *testing.T) {
		resp, err := svc.Introspect(ctx, "", pair.RefreshToken, oauth2.HintRefreshToken)
		require.NoError(t, err)
		require.True(t, resp.Active)
		require.Equal(t, user.ID, resp.Sub)
	})

	t.Run("wrong hint still resolves by falling back", func(t *testing.T) {
		resp, err := svc.Introspect(ctx, "", pair.RefreshToken, oauth2.HintAccessToken)
		require.NoError(t, err)
		require.True(t, resp.Active)
	})

	t.Run("unknown token is just inactive", func(t *testing.T) {
		resp, err := svc.Introspect(ctx, "", cryptox.MustGenerateToken(cryptox.TokenSize256), "")
		require.NoError(t, err)
		require.False(t, resp.Active)
	})

	t.Run("expired token is inactive regardless of flags", func(t *testing.T) {
		plain := cryptox.MustGenerateToken(cryptox.TokenSize256)
		at := domain.AccessToken{
			ID:        idx.New().String(),
			ClientID:  client.ID,
			UserID:    user.ID,
			TokenHash: cryptox.FingerprintToken(plain),
			Scopes:    []string{"openid"},
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		require.NoError(t, st.AccessTokens().CreateAccessToken(ctx, at))

		resp, err := svc.Introspect(ctx, "", plain, "")
		require.NoError(t, err)
		require.False(t, resp.Active)
	})
}

func TestIntrospectionResourceServerVisibility(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &IntrospectionService{Store: st, Issuer: testIssuer}
	client := seedClient(t, st)

	hash, err := cryptox.HashSecret("rs-secret")
	require.NoError(t, err)
	rs := domain.ResourceServer{ID: "rs-api", Name: "API", SecretHash: hash, CreatedAt: time.Now()}
	require.NoError(t, st.ResourceServers().CreateResourceServer(ctx, rs))

	t.Run("resource server authentication", func(t *testing.T) {
		require.NoError(t, svc.AuthenticateResourceServer(ctx, "rs-api", "rs-secret"))
		require.Error(t, svc.AuthenticateResourceServer(ctx, "rs-api", "wrong"))
		require.Error(t, svc.AuthenticateResourceServer(ctx, "nope", "rs-secret"))
	})

	// A token pinned to rs-api is invisible to everyone else.
	plain := cryptox.MustGenerateToken(cryptox.TokenSize256)
	at := domain.AccessToken{
		ID:               idx.New().String(),
		ClientID:         client.ID,
		TokenHash:        cryptox.FingerprintToken(plain),
		Scopes:           []string{"api:read"},
		ResourceServerID: "rs-api",
		ExpiresAt:        time.Now().Add(time.Hour),
		CreatedAt:        time.Now(),
	}
	require.NoError(t, st.AccessTokens().CreateAccessToken(ctx, at))

	t.Run("owning resource server sees the token", func(t *testing.T) {
		resp, err := svc.Introspect(ctx, "rs-api", plain, "")
		require.NoError(t, err)
		require.True(t, resp.Active)
	})

	t.Run("foreign resource server sees inactive", func(t *testing.T) {
		resp, err := svc.Introspect(ctx, "rs-other", plain, "")
		require.NoError(t, err)
		require.False(t, resp.Active)
	})
}
