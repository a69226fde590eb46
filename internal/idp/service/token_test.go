package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/oauth2"

	"github.com/stretchr/testify/require"
)

func TestExchangeAuthorizationCode(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)
	user := seedUser(t, st)

	code := seedCode(t, st, client, user, nil)

	pair, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
		"grant_type", "authorization_code",
		"code", code,
		"redirect_uri", testRedirectURI,
	))
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.IDToken, "openid scope mints an ID token")
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, "openid profile", pair.Scope)

	claims, err := svc.Keys.VerifyIDToken(pair.IDToken, testIssuer)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, "n-0S6_WzA2Mj", claims.Nonce)

	// Second identical exchange: the code is used up.
	_, err = svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
		"grant_type", "authorization_code",
		"code", code,
		"redirect_uri", testRedirectURI,
	))
	require.Error(t, err)
	require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err).Code)
}

func TestExchangeAuthorizationCodeConcurrentSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)
	user := seedUser(t, st)

	code := seedCode(t, st, client, user, nil)

	const redeemers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for range redeemers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
				"grant_type", "authorization_code",
				"code", code,
				"redirect_uri", testRedirectURI,
			))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "exactly one concurrent redeemer wins")
	require.Equal(t, redeemers-1, failures)
}

func TestExchangeAuthorizationCodeRejections(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)
	user := seedUser(t, st)

	t.Run("wrong redirect_uri", func(t *testing.T) {
		code := seedCode(t, st, client, user, nil)
		_, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "authorization_code",
			"code", code,
			"redirect_uri", testRedirectURI+"/",
		))
		require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("wrong client", func(t *testing.T) {
		other := seedPublicClient(t, st)
		code := seedCode(t, st, client, user, nil)
		_, err := svc.Exchange(ctx, tokenRequest(other, ""), form(
			"grant_type", "authorization_code",
			"client_id", other.ID,
			"code", code,
			"redirect_uri", testRedirectURI,
		))
		require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("wrong client secret", func(t *testing.T) {
		code := seedCode(t, st, client, user, nil)
		_, err := svc.Exchange(ctx, tokenRequest(client, "nope"), form(
			"grant_type", "authorization_code",
			"code", code,
			"redirect_uri", testRedirectURI,
		))
		require.Equal(t, oauth2.ErrorCodeInvalidClient, oauth2.AsError(err).Code)
	})

	t.Run("pkce verifier enforced", func(t *testing.T) {
		verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
		sum := sha256.Sum256([]byte(verifier))
		challenge := base64.RawURLEncoding.EncodeToString(sum[:])

		code := seedCode(t, st, client, user, func(c *domain.AuthorizationCode) {
			c.CodeChallenge = challenge
			c.CodeChallengeMethod = oauth2.PKCEMethodS256
		})

		_, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "authorization_code",
			"code", code,
			"redirect_uri", testRedirectURI,
		))
		require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err).Code)

		pair, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "authorization_code",
			"code", code,
			"redirect_uri", testRedirectURI,
			"code_verifier", verifier,
		))
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
	})
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)

	t.Run("issues a token for the client itself", func(t *testing.T) {
		pair, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "client_credentials",
			"scope", "api:read",
		))
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.Empty(t, pair.RefreshToken, "client_credentials mints no refresh token")
		require.Empty(t, pair.IDToken)
	})

	t.Run("anonymous request is invalid_client", func(t *testing.T) {
		r := httptest.NewRequest("POST", testTokenEndpoint, nil)
		_, err := svc.Exchange(ctx, r, form("grant_type", "client_credentials"))
		require.Equal(t, oauth2.ErrorCodeInvalidClient, oauth2.AsError(err).Code)
	})

	t.Run("public client is unauthorized_client", func(t *testing.T) {
		public := seedPublicClient(t, st)
		_, err := svc.Exchange(ctx, tokenRequest(public, ""), form(
			"grant_type", "client_credentials",
			"client_id", public.ID,
		))
		require.Equal(t, oauth2.ErrorCodeUnauthorizedClient, oauth2.AsError(err).Code)
	})
}

func TestTokenTypeResolution(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)

	t.Run("lowercase bearer normalizes", func(t *testing.T) {
		pair, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "client_credentials",
			"token_type", "bearer",
		))
		require.NoError(t, err)
		require.Equal(t, oauth2.TokenTypeBearer, pair.TokenType)
	})

	t.Run("unsupported token type is invalid_request", func(t *testing.T) {
		_, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "client_credentials",
			"token_type", "mac",
		))
		require.Equal(t, oauth2.ErrorCodeInvalidRequest, oauth2.AsError(err).Code)
	})
}

func TestRefreshTokenGrant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)
	user := seedUser(t, st)

	code := seedCode(t, st, client, user, nil)
	pair, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
		"grant_type", "authorization_code",
		"code", code,
		"redirect_uri", testRedirectURI,
	))
	require.NoError(t, err)

	t.Run("requesting wider scope fails", func(t *testing.T) {
		_, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "refresh_token",
			"refresh_token", pair.RefreshToken,
			"scope", "openid profile api:write",
		))
		require.Equal(t, oauth2.ErrorCodeInvalidScope, oauth2.AsError(err).Code)
	})

	t.Run("narrowed refresh rotates the token", func(t *testing.T) {
		refreshed, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "refresh_token",
			"refresh_token", pair.RefreshToken,
			"scope", "profile",
		))
		require.NoError(t, err)
		require.Equal(t, "profile", refreshed.Scope)
		require.NotEmpty(t, refreshed.RefreshToken)
		require.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)

		// The rotated-out token is dead.
		_, err = svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "refresh_token",
			"refresh_token", pair.RefreshToken,
		))
		require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err).Code)
	})
}

func TestPasswordGrant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)
	seedUser(t, st)

	t.Run("valid credentials", func(t *testing.T) {
		pair, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "password",
			"username", "alice",
			"password", testUserPassword,
			"scope", "openid",
		))
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.IDToken)
	})

	t.Run("wrong password and unknown user look identical", func(t *testing.T) {
		_, err1 := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "password",
			"username", "alice",
			"password", "wrong",
		))
		_, err2 := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form(
			"grant_type", "password",
			"username", "nobody",
			"password", "wrong",
		))
		require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err1).Code)
		require.Equal(t, oauth2.ErrorCodeInvalidGrant, oauth2.AsError(err2).Code)
	})
}

func TestGrantTypeGating(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTokenService(t, st)
	client := seedClient(t, st)

	t.Run("unknown grant type", func(t *testing.T) {
		_, err := svc.Exchange(ctx, tokenRequest(client, testClientSecret), form("grant_type", "device_code"))
		require.Equal(t, oauth2.ErrorCodeUnsupportedGrantType, oauth2.AsError(err).Code)
	})

	t.Run("unregistered grant type is unauthorized_client", func(t *testing.T) {
		public := seedPublicClient(t, st)
		// public client has no password grant registered
		_, err := svc.Exchange(ctx, tokenRequest(public, ""), form(
			"grant_type", "password",
			"client_id", public.ID,
			"username", "alice",
			"password", "x",
		))
		require.Equal(t, oauth2.ErrorCodeUnauthorizedClient, oauth2.AsError(err).Code)
	})
}
