package idp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	httpapi "github.com/tanukisoft/torii/internal/idp/http"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/internal/idp/store/drivers/sqlite"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/idx"
	"github.com/tanukisoft/torii/pkg/jwtx"
	"github.com/tanukisoft/torii/pkg/slogx"

	"github.com/stretchr/testify/require"
)

/*
 * End-to-end tests for the authorization server: a fully-wired router over
 * an in-memory store, driven through real HTTP requests.
 */

const (
	issuer         = "https://idp.e2e"
	clientSecret   = "e2e-client-secret"
	userPassword   = "CorrectHorse9!"
	username       = "alice"
	redirectURI    = "https://rp.e2e/callback"
	rsSecret       = "e2e-resource-server-secret"
	bootstrapToken = "e2e-bootstrap-token-12345"
)

// env bundles the wired server and its seams for seeding fixtures.
type env struct {
	Server *httptest.Server
	Store  *sqlite.Store
	Keys   *jwtx.KeySet
}

// setupServer wires storage, services and the router the same way the
// application does, backed by an in-memory database.
func setupServer(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeySet(1)
	require.NoError(t, err)

	scope := &oauth2.ScopePolicy{
		Supported: []string{"openid", "profile", "api:read"},
		Defaults:  []string{"openid"},
	}
	auth := &oauth2.ClientAuthenticator{
		TokenEndpoint: issuer + "/token",
		AssertionTTL:  5 * time.Minute,
	}

	tokens := &service.TokenService{
		Store: st,
		Keys:  keys,
		Auth:  auth,
		Grants: oauth2.NewGrantRegistry(
			&oauth2.AuthorizationCodeGrant{},
			&oauth2.RefreshTokenGrant{Rotate: true},
			&oauth2.ClientCredentialsGrant{Scope: scope},
			&oauth2.PasswordGrant{Scope: scope},
		),
		Issuer:     issuer,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		CodeTTL:    5 * time.Minute,
		IDTokenTTL: time.Hour,
	}

	router := httpapi.NewRouter(keys, issuer, "e2e", st, slogx.Discard())
	router.TokenService = tokens
	router.AuthorizeService = &service.AuthorizeService{
		Store:             st,
		Tokens:            tokens,
		Responses:         oauth2.NewResponseTypeRegistry(tokens),
		Scope:             scope,
		RequestTTL:        5 * time.Minute,
		AllowModeOverride: true,
	}
	router.IntrospectionService = &service.IntrospectionService{Store: st, Issuer: issuer}
	router.RevocationService = &service.RevocationService{Store: st, Auth: auth}
	router.RegistrationService = &service.RegistrationService{Store: st, Scope: scope, Issuer: issuer}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &env{Server: server, Store: st, Keys: keys}
}

// noRedirectClient returns codes and tokens in Location headers; the test
// inspects them instead of following.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *env) seedClient(t *testing.T) domain.Client {
	t.Helper()
	hash, err := cryptox.HashSecret(clientSecret)
	require.NoError(t, err)

	now := time.Now()
	client := domain.Client{
		ID:              idx.New().String(),
		Name:            "e2e-web-app",
		SecretHash:      hash,
		TokenAuthMethod: domain.AuthMethodSecretBasic,
		GrantTypes: []string{
			oauth2.GrantTypeAuthorizationCode,
			oauth2.GrantTypeRefreshToken,
			oauth2.GrantTypeClientCredentials,
		},
		ResponseTypes: []string{"code"},
		RedirectURIs:  []string{redirectURI},
		Scopes:        []string{"openid", "profile", "api:read"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.Store.Clients().CreateClient(context.Background(), client))
	return client
}

func (e *env) seedUser(t *testing.T) domain.UserAccount {
	t.Helper()
	hash, err := cryptox.HashSecret(userPassword)
	require.NoError(t, err)

	now := time.Now()
	user := domain.UserAccount{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.Store.Users().CreateUser(context.Background(), user))
	return user
}

func (e *env) seedResourceServer(t *testing.T) domain.ResourceServer {
	t.Helper()
	hash, err := cryptox.HashSecret(rsSecret)
	require.NoError(t, err)

	rs := domain.ResourceServer{
		ID:         idx.New().String(),
		Name:       "e2e-api",
		SecretHash: hash,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, e.Store.ResourceServers().CreateResourceServer(context.Background(), rs))
	return rs
}

func (e *env) seedInitialAccessToken(t *testing.T) string {
	t.Helper()
	now := time.Now()
	err := e.Store.InitialAccessTokens().CreateInitialAccessToken(context.Background(), domain.InitialAccessToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(bootstrapToken),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	})
	require.NoError(t, err)
	return bootstrapToken
}

var requestIDPattern = regexp.MustCompile(`name="request_id" value="([^"]+)"`)

// extractRequestID pulls the flow correlation id out of a rendered login or
// consent form.
func extractRequestID(t *testing.T, body string) string {
	t.Helper()
	m := requestIDPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "form should carry a request_id")
	return m[1]
}
