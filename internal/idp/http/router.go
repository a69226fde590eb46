package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/jwtx"
	"github.com/tanukisoft/torii/pkg/slogx"

	_ "github.com/tanukisoft/torii/api/openapi" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store                store.Store
	TokenService         *service.TokenService
	AuthorizeService     *service.AuthorizeService
	IntrospectionService *service.IntrospectionService
	RevocationService    *service.RevocationService
	RegistrationService  *service.RegistrationService

	// SessionTTL bounds how long a login session cookie stays valid.
	SessionTTL time.Duration
}

func NewRouter(
	keys *jwtx.KeySet,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		SessionTTL:   12 * time.Hour,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuthorize()
	r.registerToken()
	r.registerRegistration()
	r.registerDiscovery()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Torii Authorization Server API
//	@version		0.1.0
//	@description	OAuth 2.0 and OpenID Connect authorization server: authorization,
//	@description	token, introspection, revocation and dynamic client registration
//	@description	endpoints.
//	@description
//	@description	ID tokens are signed with EdDSA (Ed25519); verification keys are
//	@description	published on the JWKS endpoint.
//
//	@contact.name	Tanukisoft
//	@contact.url	https://github.com/tanukisoft/torii
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuthorize() {
	h := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Keys:             r.keys,
		Issuer:           r.issuer,
		SessionTTL:       r.SessionTTL,
	}

	// GET/POST /authorize - lenient rate limit (entry point, renders forms)
	r.Mux.Handle("GET /authorize",
		httpx.Chain(http.HandlerFunc(h.HandleBegin),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /authorize",
		httpx.Chain(http.HandlerFunc(h.HandleBegin),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize/login - strict rate limit keyed by IP + username to
	// slow credential stuffing.
	r.Mux.Handle("POST /authorize/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /authorize/consent - lenient, the user is already authenticated
	r.Mux.Handle("POST /authorize/consent",
		httpx.Chain(http.HandlerFunc(h.HandleConsent),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerToken() {
	// POST /token - strict rate limit by IP (covers all grant types)
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /token/introspection (RFC 7662) - resource servers only, moderate limit
	introspectHandler := &IntrospectHandler{IntrospectionService: r.IntrospectionService}
	r.Mux.Handle("POST /token/introspection",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET|POST /token/revocation (RFC 7009) - moderate limit
	revokeHandler := &RevokeHandler{RevocationService: r.RevocationService}
	r.Mux.Handle("GET /token/revocation",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /token/revocation",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRegistration() {
	h := &RegistrationHandler{RegistrationService: r.RegistrationService}

	// POST /register (RFC 7591) - strict limit, gated by initial access token
	r.Mux.Handle("POST /register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET|PUT|DELETE /configure/{client_id} (RFC 7592) - moderate limit,
	// gated by the per-client registration access token
	r.Mux.Handle("GET /configure/{client_id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PUT /configure/{client_id}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /configure/{client_id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerDiscovery() {
	var scope *oauth2.ScopePolicy
	var grants *oauth2.GrantRegistry
	var responses *oauth2.ResponseTypeRegistry
	if r.AuthorizeService != nil {
		scope = r.AuthorizeService.Scope
		responses = r.AuthorizeService.Responses
	}
	if r.TokenService != nil {
		grants = r.TokenService.Grants
	}

	// Public read-only endpoints get the high public limit
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer, scope, grants, responses),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
