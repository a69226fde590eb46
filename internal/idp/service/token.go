// Package service holds the application services driving the protocol
// engine: the token pipeline, the authorization flow state machine,
// introspection/revocation, dynamic registration and housekeeping.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/idx"
	"github.com/tanukisoft/torii/pkg/jwtx"
	"github.com/tanukisoft/torii/pkg/slogx"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/tanukisoft/torii/internal/idp/service")

// TokenService runs the token endpoint pipeline: client authentication,
// grant dispatch, and token minting, all inside one transaction so grant
// consumption and issuance are atomic.
type TokenService struct {
	Store  store.Store
	Keys   *jwtx.KeySet
	Auth   *oauth2.ClientAuthenticator
	Grants *oauth2.GrantRegistry

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration
	IDTokenTTL time.Duration
}

// Exchange handles a POST /token request body. The returned error is always
// a *oauth2.Error for protocol failures.
func (s *TokenService) Exchange(ctx context.Context, r *http.Request, form url.Values) (*domain.TokenPair, error) {
	grantType := form.Get("grant_type")

	ctx, span := tracer.Start(ctx, "token.exchange")
	defer span.End()
	span.SetAttributes(attribute.String("oauth.grant_type", grantType))

	l := slogx.FromContext(ctx)

	tokenType, err := oauth2.ResolveTokenType(form.Get("token_type"))
	if err != nil {
		return nil, err
	}

	handler, err := s.Grants.Resolve(grantType)
	if err != nil {
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		client, err := s.Auth.Authenticate(ctx, tx, r, form)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("oauth.client_id", client.ID))

		if !client.AllowsGrantType(grantType) {
			return oauth2.ErrUnauthorizedClient
		}

		iss, err := handler.Handle(ctx, tx, client, form)
		if err != nil {
			return err
		}

		pair, err = s.mint(ctx, tx, iss)
		if err != nil {
			return err
		}
		pair.TokenType = tokenType
		return nil
	})
	if err != nil {
		oe := oauth2.AsError(err)
		if oe == oauth2.ErrServerError {
			l.Error("token exchange failed", "err", err, slog.String("grant_type", grantType))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, oe.Code)
		return nil, oe
	}

	span.SetStatus(codes.Ok, "")
	return pair, nil
}

// mint turns an issuance instruction into stored tokens and the wire
// response.
func (s *TokenService) mint(ctx context.Context, tx store.Tx, iss *oauth2.Issuance) (*domain.TokenPair, error) {
	now := time.Now()

	var refreshTokenID, refreshPlain string
	if iss.WithRefreshToken {
		refreshPlain = cryptox.MustGenerateToken(cryptox.TokenSize256)
		refreshTokenID = idx.New().String()
		rt := domain.RefreshToken{
			ID:               refreshTokenID,
			UserID:           iss.UserID,
			ClientID:         iss.ClientID,
			TokenHash:        cryptox.FingerprintToken(refreshPlain),
			Scopes:           iss.Scopes,
			ResourceServerID: iss.ResourceServerID,
			Properties:       iss.Properties,
			ExpiresAt:        now.Add(s.RefreshTTL),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
			return nil, err
		}
	}

	accessPlain := cryptox.MustGenerateToken(cryptox.TokenSize256)
	at := domain.AccessToken{
		ID:               idx.New().String(),
		UserID:           iss.UserID,
		ClientID:         iss.ClientID,
		TokenHash:        cryptox.FingerprintToken(accessPlain),
		Scopes:           iss.Scopes,
		RefreshTokenID:   refreshTokenID,
		ResourceServerID: iss.ResourceServerID,
		Properties:       iss.Properties,
		ExpiresAt:        now.Add(s.AccessTTL),
		CreatedAt:        now,
	}
	if err := tx.AccessTokens().CreateAccessToken(ctx, at); err != nil {
		return nil, err
	}

	pair := &domain.TokenPair{
		AccessToken:  accessPlain,
		TokenType:    oauth2.TokenTypeBearer,
		ExpiresIn:    int(s.AccessTTL.Seconds()),
		RefreshToken: refreshPlain,
		Scope:        strings.Join(iss.Scopes, " "),
	}

	if iss.WithIDToken && iss.UserID != "" {
		idToken, err := s.signIDToken(iss, "", accessPlain)
		if err != nil {
			return nil, err
		}
		pair.IDToken = idToken
	}

	return pair, nil
}

func (s *TokenService) signIDToken(iss *oauth2.Issuance, code, accessToken string) (string, error) {
	claims := jwtx.NewIDTokenClaims(s.Issuer, iss.UserID, iss.ClientID, iss.Nonce, iss.AuthTime, s.IDTokenTTL, time.Now())
	if accessToken != "" {
		claims.AtHash = jwtx.HalfHash(accessToken)
	}
	if code != "" {
		claims.CHash = jwtx.HalfHash(code)
	}
	return s.Keys.Signer().Sign(claims)
}

// MintAuthorizationCode implements oauth2.Minter for the code response type.
// The code only carries a refresh token promise when the client is actually
// registered for the refresh grant.
func (s *TokenService) MintAuthorizationCode(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) (string, error) {
	client, err := tx.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	plain := cryptox.MustGenerateToken(cryptox.TokenSize128)

	code := domain.AuthorizationCode{
		ID:                  idx.New().String(),
		UserID:              req.UserID,
		ClientID:            req.ClientID,
		CodeHash:            cryptox.FingerprintToken(plain),
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		Query:               req.Query,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		WithRefreshToken:    client.AllowsGrantType(oauth2.GrantTypeRefreshToken),
		Nonce:               req.Nonce,
		AuthTime:            req.AuthTime,
		ExpiresAt:           now.Add(s.CodeTTL),
		CreatedAt:           now,
	}
	if err := tx.AuthorizationCodes().CreateAuthorizationCode(ctx, code); err != nil {
		return "", err
	}
	return plain, nil
}

// MintAccessToken implements oauth2.Minter for the implicit token response
// type.
func (s *TokenService) MintAccessToken(ctx context.Context, tx store.Tx, iss *oauth2.Issuance) (string, int, error) {
	pair, err := s.mint(ctx, tx, iss)
	if err != nil {
		return "", 0, err
	}
	return pair.AccessToken, pair.ExpiresIn, nil
}

// MintIDToken implements oauth2.Minter for the id_token response type.
func (s *TokenService) MintIDToken(ctx context.Context, iss *oauth2.Issuance, code, accessToken string) (string, error) {
	return s.signIDToken(iss, code, accessToken)
}
