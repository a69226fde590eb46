package service

import (
	"context"
	"testing"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/pkg/cryptox"

	"github.com/stretchr/testify/require"
)

func TestRevocation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tokens := newTokenService(t, st)
	revoker := &RevocationService{Store: st, Auth: tokens.Auth}
	introspector := &IntrospectionService{Store: st, Issuer: testIssuer}

	client1 := seedClient(t, st)
	client2 := seedPublicClient(t, st)
	user := seedUser(t, st)

	// client2 holds a live access token.
	code := seedCode(t, st, client2, user, nil)
	pair2, err := tokens.Exchange(ctx, tokenRequest(client2, ""), form(
		"grant_type", "authorization_code",
		"client_id", client2.ID,
		"code", code,
		"redirect_uri", testRedirectURI,
	))
	require.NoError(t, err)

	t.Run("ownership mismatch is an error and leaves the token live", func(t *testing.T) {
		err := revoker.Revoke(ctx, tokenRequest(client1, testClientSecret), form(
			"token", pair2.AccessToken,
		))
		require.Error(t, err)
		require.Equal(t, oauth2.ErrorCodeInvalidRequest, oauth2.AsError(err).Code)

		resp, err := introspector.Introspect(ctx, "", pair2.AccessToken, "")
		require.NoError(t, err)
		require.True(t, resp.Active, "foreign revocation attempt must not kill the token")
	})

	t.Run("nonexistent token succeeds with no state change", func(t *testing.T) {
		err := revoker.Revoke(ctx, tokenRequest(client1, testClientSecret), form(
			"token", cryptox.MustGenerateToken(cryptox.TokenSize256),
		))
		require.NoError(t, err)
	})

	t.Run("unsupported hint", func(t *testing.T) {
		err := revoker.Revoke(ctx, tokenRequest(client1, testClientSecret), form(
			"token", "whatever",
			"token_type_hint", "saml_token",
		))
		require.Equal(t, oauth2.ErrorCodeUnsupportedTokenType, oauth2.AsError(err).Code)
	})

	t.Run("owner revocation works and is idempotent", func(t *testing.T) {
		err := revoker.Revoke(ctx, tokenRequest(client2, ""), form(
			"client_id", client2.ID,
			"token", pair2.AccessToken,
		))
		require.NoError(t, err)

		resp, err := introspector.Introspect(ctx, "", pair2.AccessToken, "")
		require.NoError(t, err)
		require.False(t, resp.Active)

		// Again: still success.
		err = revoker.Revoke(ctx, tokenRequest(client2, ""), form(
			"client_id", client2.ID,
			"token", pair2.AccessToken,
		))
		require.NoError(t, err)
	})
}

func TestRevokeRefreshTokenCascades(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tokens := newTokenService(t, st)
	revoker := &RevocationService{Store: st, Auth: tokens.Auth}
	introspector := &IntrospectionService{Store: st, Issuer: testIssuer}

	client := seedClient(t, st)
	user := seedUser(t, st)

	code := seedCode(t, st, client, user, nil)
	pair, err := tokens.Exchange(ctx, tokenRequest(client, testClientSecret), form(
		"grant_type", "authorization_code",
		"code", code,
		"redirect_uri", testRedirectURI,
	))
	require.NoError(t, err)

	err = revoker.Revoke(ctx, tokenRequest(client, testClientSecret), form(
		"token", pair.RefreshToken,
		"token_type_hint", "refresh_token",
	))
	require.NoError(t, err)

	// The access token that refresh token minted is dead too.
	resp, err := introspector.Introspect(ctx, "", pair.AccessToken, "")
	require.NoError(t, err)
	require.False(t, resp.Active)
}
