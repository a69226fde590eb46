package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	httpapi "github.com/tanukisoft/torii/internal/idp/http"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/internal/idp/store/drivers/sqlite"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/idx"
	"github.com/tanukisoft/torii/pkg/jwtx"
	"github.com/tanukisoft/torii/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the authorization server together: storage, key
// material, services and the HTTP surface.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db   store.Store
	keys *jwtx.KeySet

	tokenService         *service.TokenService
	authorizeService     *service.AuthorizeService
	introspectionService *service.IntrospectionService
	revocationService    *service.RevocationService
	registrationService  *service.RegistrationService
	housekeepingService  *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "torii",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := jwtx.NewEphemeralKeySet(cfg.NumKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keys = keys

	if err := app.initServices(); err != nil {
		return nil, err
	}
	if err := app.bootstrap(context.Background()); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("authorization server starting",
		"port", app.cfg.Port,
		"issuer", app.cfg.Issuer,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the server, the housekeeping sweeper and the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authorization server...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authorization server stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() error {
	scope := &oauth2.ScopePolicy{
		Supported: app.cfg.ScopesSupported,
		Defaults:  app.cfg.DefaultScopes,
	}

	auth := &oauth2.ClientAuthenticator{
		TokenEndpoint: app.cfg.Issuer + "/token",
		AssertionTTL:  5 * time.Minute,
	}

	trusted, err := app.cfg.LoadTrustedIssuers()
	if err != nil {
		return err
	}

	grants := oauth2.NewGrantRegistry(
		&oauth2.AuthorizationCodeGrant{RejectUnmatchedVerifier: app.cfg.RejectUnmatchedVerifier},
		&oauth2.RefreshTokenGrant{Rotate: app.cfg.RotateRefreshTokens},
		&oauth2.ClientCredentialsGrant{Scope: scope},
		&oauth2.PasswordGrant{Scope: scope},
		&oauth2.JWTBearerGrant{
			Scope:          scope,
			Audience:       app.cfg.Issuer + "/token",
			TrustedIssuers: trusted,
		},
	)

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Keys:       app.keys,
		Auth:       auth,
		Grants:     grants,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		CodeTTL:    app.cfg.CodeTTL,
		IDTokenTTL: app.cfg.IDTokenTTL,
	}

	app.authorizeService = &service.AuthorizeService{
		Store:             app.db,
		Tokens:            app.tokenService,
		Responses:         oauth2.NewResponseTypeRegistry(app.tokenService),
		Scope:             scope,
		RequestTTL:        app.cfg.RequestTTL,
		AllowModeOverride: app.cfg.AllowResponseModeOverride,
	}

	app.introspectionService = &service.IntrospectionService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}

	app.revocationService = &service.RevocationService{
		Store: app.db,
		Auth:  auth,
	}

	app.registrationService = &service.RegistrationService{
		Store:  app.db,
		Scope:  scope,
		Issuer: app.cfg.Issuer,
	}

	app.housekeepingService = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)
	return nil
}

// bootstrap seeds the initial access token for dynamic registration when
// one is configured. Seeding is idempotent across restarts.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapToken == "" {
		return nil
	}

	hash := cryptox.FingerprintToken(app.cfg.BootstrapToken)
	_, err := app.db.InitialAccessTokens().GetInitialAccessTokenByHash(ctx, hash)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup failed: %w", err)
	}

	now := time.Now()
	err = app.db.InitialAccessTokens().CreateInitialAccessToken(ctx, domain.InitialAccessToken{
		ID:        idx.New().String(),
		TokenHash: hash,
		ExpiresAt: now.Add(365 * 24 * time.Hour),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("bootstrap seeding failed: %w", err)
	}

	app.logger.Info("seeded initial access token for dynamic registration")
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys, app.cfg.Issuer, BuildVersion, app.db, app.logger)
	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.IntrospectionService = app.introspectionService
	router.RevocationService = app.revocationService
	router.RegistrationService = app.registrationService
	router.SessionTTL = app.cfg.SessionTTL
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
