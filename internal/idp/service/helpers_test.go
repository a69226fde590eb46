package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/store/drivers/sqlite"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/idx"
	"github.com/tanukisoft/torii/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

const (
	testIssuer        = "https://idp.test"
	testTokenEndpoint = "https://idp.test/token"
	testRedirectURI   = "https://www.example.com/callback"
	testClientSecret  = "s3cret-client-secret"
	testUserPassword  = "correct horse battery staple"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTokenService(t *testing.T, st *sqlite.Store) *TokenService {
	t.Helper()
	keys, err := jwtx.NewEphemeralKeySet(1)
	require.NoError(t, err)

	scope := &oauth2.ScopePolicy{
		Supported: []string{"openid", "profile", "email", "api:read", "api:write"},
		Defaults:  []string{"openid"},
	}

	svc := &TokenService{
		Store: st,
		Keys:  keys,
		Auth: &oauth2.ClientAuthenticator{
			TokenEndpoint: testTokenEndpoint,
			AssertionTTL:  5 * time.Minute,
		},
		Issuer:     testIssuer,
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		CodeTTL:    5 * time.Minute,
		IDTokenTTL: 10 * time.Minute,
	}
	svc.Grants = oauth2.NewGrantRegistry(
		&oauth2.AuthorizationCodeGrant{},
		&oauth2.ClientCredentialsGrant{Scope: scope},
		&oauth2.RefreshTokenGrant{Rotate: true},
		&oauth2.PasswordGrant{Scope: scope},
		&oauth2.JWTBearerGrant{Scope: scope, Audience: testTokenEndpoint},
	)
	return svc
}

func newAuthorizeService(t *testing.T, st *sqlite.Store, tokens *TokenService) *AuthorizeService {
	t.Helper()
	return &AuthorizeService{
		Store:  st,
		Tokens: tokens,
		Responses: oauth2.NewResponseTypeRegistry(tokens),
		Scope: &oauth2.ScopePolicy{
			Supported: []string{"openid", "profile", "email", "api:read", "api:write"},
			Defaults:  []string{"openid"},
		},
		RequestTTL:        5 * time.Minute,
		AllowModeOverride: true,
	}
}

// seedClient stores a confidential client_secret_basic client with sensible
// grants and returns it.
func seedClient(t *testing.T, st *sqlite.Store) domain.Client {
	t.Helper()
	hash, err := cryptox.HashSecret(testClientSecret)
	require.NoError(t, err)

	now := time.Now()
	client := domain.Client{
		ID:              idx.New().String(),
		Name:            "example-web-app",
		SecretHash:      hash,
		TokenAuthMethod: domain.AuthMethodSecretBasic,
		GrantTypes: []string{
			oauth2.GrantTypeAuthorizationCode,
			oauth2.GrantTypeRefreshToken,
			oauth2.GrantTypeClientCredentials,
			oauth2.GrantTypePassword,
		},
		ResponseTypes: []string{"code", "token", "id_token", "code id_token", "none"},
		RedirectURIs:  []string{testRedirectURI},
		Scopes:        []string{"openid", "profile", "api:read"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, st.Clients().CreateClient(context.Background(), client))
	return client
}

func seedPublicClient(t *testing.T, st *sqlite.Store) domain.Client {
	t.Helper()
	now := time.Now()
	client := domain.Client{
		ID:              idx.New().String(),
		Name:            "example-spa",
		TokenAuthMethod: domain.AuthMethodNone,
		GrantTypes:      []string{oauth2.GrantTypeAuthorizationCode, oauth2.GrantTypeClientCredentials},
		ResponseTypes:   []string{"code"},
		RedirectURIs:    []string{testRedirectURI},
		Scopes:          []string{"openid", "profile"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, st.Clients().CreateClient(context.Background(), client))
	return client
}

func seedUser(t *testing.T, st *sqlite.Store) domain.UserAccount {
	t.Helper()
	hash, err := cryptox.HashSecret(testUserPassword)
	require.NoError(t, err)

	now := time.Now()
	user := domain.UserAccount{
		ID:           idx.New().String(),
		Username:     "alice",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}

// seedCode stores a redeemable authorization code and returns its plaintext.
func seedCode(t *testing.T, st *sqlite.Store, client domain.Client, user domain.UserAccount, mutate func(*domain.AuthorizationCode)) string {
	t.Helper()
	plain := cryptox.MustGenerateToken(cryptox.TokenSize128)
	now := time.Now()
	code := domain.AuthorizationCode{
		ID:               idx.New().String(),
		UserID:           user.ID,
		ClientID:         client.ID,
		CodeHash:         cryptox.FingerprintToken(plain),
		RedirectURI:      testRedirectURI,
		Scopes:           []string{"openid", "profile"},
		WithRefreshToken: true,
		Nonce:            "n-0S6_WzA2Mj",
		AuthTime:         now,
		ExpiresAt:        now.Add(5 * time.Minute),
		CreatedAt:        now,
	}
	if mutate != nil {
		mutate(&code)
	}
	require.NoError(t, st.AuthorizationCodes().CreateAuthorizationCode(context.Background(), code))
	return plain
}

// tokenRequest builds a POST /token request with basic auth.
func tokenRequest(client domain.Client, secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, testTokenEndpoint, strings.NewReader(""))
	if secret != "" {
		r.SetBasicAuth(client.ID, secret)
	}
	return r
}

func form(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}
