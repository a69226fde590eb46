package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"

	"go.opentelemetry.io/otel/attribute"
)

// IntrospectionResponse is the RFC 7662 wire shape. Inactive tokens carry
// only active=false; everything else stays hidden.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`
}

// IntrospectionService answers resource servers asking whether a token is
// live. Callers authenticate as a registered resource server; visibility is
// scoped so a token pinned to one resource server stays invisible to others.
type IntrospectionService struct {
	Store  store.Store
	Issuer string
}

var inactive = &IntrospectionResponse{Active: false}

// AuthenticateResourceServer checks basic-auth credentials against the
// resource server registry.
func (s *IntrospectionService) AuthenticateResourceServer(ctx context.Context, id, secret string) error {
	rs, err := s.Store.ResourceServers().GetResourceServerByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return oauth2.ErrInvalidClient
		}
		return err
	}
	if err := cryptox.VerifySecret(secret, rs.SecretHash); err != nil {
		return oauth2.ErrInvalidClient
	}
	return nil
}

// Introspect resolves the token across the hint order and reports its state.
// Absent, expired, revoked or foreign-owned tokens are all just inactive.
func (s *IntrospectionService) Introspect(ctx context.Context, resourceServerID, token, hint string) (*IntrospectionResponse, error) {
	ctx, span := tracer.Start(ctx, "introspect")
	defer span.End()
	span.SetAttributes(attribute.String("oauth.token_type_hint", hint))

	if token == "" {
		return nil, oauth2.ErrInvalidRequest.WithDescription("token is required")
	}

	order, ok := oauth2.HintOrder(hint)
	if !ok {
		// Unknown hints are not fatal for introspection; fall back to the
		// default order per RFC 7662 §2.1.
		order, _ = oauth2.HintOrder("")
	}

	hash := cryptox.FingerprintToken(token)
	now := time.Now()

	for _, kind := range order {
		switch kind {
		case oauth2.HintAccessToken:
			at, err := s.Store.AccessTokens().GetAccessTokenByHash(ctx, hash)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if !at.Valid(now) || !visibleTo(at.ResourceServerID, resourceServerID) {
				return inactive, nil
			}
			return &IntrospectionResponse{
				Active:    true,
				Scope:     strings.Join(at.Scopes, " "),
				ClientID:  at.ClientID,
				TokenType: oauth2.TokenTypeBearer,
				Exp:       at.ExpiresAt.Unix(),
				Iat:       at.CreatedAt.Unix(),
				Sub:       at.UserID,
				Iss:       s.Issuer,
				Jti:       at.ID,
			}, nil

		case oauth2.HintRefreshToken:
			rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if !rt.Valid(now) || !visibleTo(rt.ResourceServerID, resourceServerID) {
				return inactive, nil
			}
			return &IntrospectionResponse{
				Active:   true,
				Scope:    strings.Join(rt.Scopes, " "),
				ClientID: rt.ClientID,
				Exp:      rt.ExpiresAt.Unix(),
				Iat:      rt.CreatedAt.Unix(),
				Sub:      rt.UserID,
				Iss:      s.Issuer,
				Jti:      rt.ID,
			}, nil

		case oauth2.HintAuthorizationCode:
			ac, err := s.Store.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, hash)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if !ac.Valid(now) {
				return inactive, nil
			}
			return &IntrospectionResponse{
				Active:   true,
				Scope:    strings.Join(ac.Scopes, " "),
				ClientID: ac.ClientID,
				Exp:      ac.ExpiresAt.Unix(),
				Iat:      ac.CreatedAt.Unix(),
				Sub:      ac.UserID,
				Iss:      s.Issuer,
				Jti:      ac.ID,
			}, nil
		}
	}

	return inactive, nil
}

// visibleTo: a token with no resource server pin is visible to every
// resource server; a pinned token only to its own.
func visibleTo(tokenRS, askingRS string) bool {
	return tokenRS == "" || tokenRS == askingRS
}
