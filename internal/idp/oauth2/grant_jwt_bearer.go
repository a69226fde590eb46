package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/jwtx"
)

// TrustedIssuer is an external party whose signed assertions the jwt-bearer
// grant accepts, with its own key material and algorithm allow-list.
type TrustedIssuer struct {
	Issuer     string          `json:"issuer"`
	JWKS       json.RawMessage `json:"jwks"`
	Algorithms []string        `json:"algorithms"`
}

// JWTBearerGrant implements RFC 7523: a signed JWT assertion authorizes
// token issuance for the resource owner named by its subject. The issuer is
// either the client itself or a configured trusted external issuer.
type JWTBearerGrant struct {
	Scope *ScopePolicy

	// Audience is the expected aud of assertions, normally the token
	// endpoint URL.
	Audience string

	TrustedIssuers []TrustedIssuer
}

func (g *JWTBearerGrant) GrantType() string { return GrantTypeJWTBearer }

func (g *JWTBearerGrant) AssociatedResponseTypes() []string { return nil }

func (g *JWTBearerGrant) Handle(ctx context.Context, tx store.Tx, client domain.Client, form url.Values) (*Issuance, error) {
	assertion := form.Get("assertion")
	if assertion == "" {
		return nil, ErrInvalidRequest.WithDescription("assertion is required")
	}

	iss, err := jwtx.PeekIssuer(assertion)
	if err != nil {
		return nil, ErrInvalidGrant.WithDescription("malformed assertion")
	}

	var (
		jwks []byte
		algs []string
	)
	switch {
	case iss == client.ID:
		if client.JWKS == "" {
			return nil, ErrInvalidGrant.WithDescription("client has no registered keys")
		}
		jwks = []byte(client.JWKS)
		algs = client.AssertionAlgs
	default:
		trusted, ok := g.lookupIssuer(iss)
		if !ok {
			return nil, ErrInvalidGrant.WithDescription("assertion issuer is not trusted")
		}
		jwks = trusted.JWKS
		algs = trusted.Algorithms
	}

	claims, err := jwtx.VerifyAssertion(assertion, jwks, algs, g.Audience)
	if err != nil {
		return nil, ErrInvalidGrant.WithDescription("assertion verification failed")
	}
	if claims.Subject == "" {
		return nil, ErrInvalidGrant.WithDescription("assertion missing sub")
	}
	if claims.ID == "" {
		return nil, ErrInvalidGrant.WithDescription("assertion missing jti")
	}

	// Replay guard, TTL covers the assertion lifetime.
	if err := tx.Assertions().RecordAssertion(ctx, claims.ID, iss, claims.ExpiresAt.Time); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrInvalidGrant.WithDescription("assertion replayed")
		}
		return nil, err
	}

	user, err := g.resolveSubject(ctx, tx, claims.Subject)
	if err != nil {
		return nil, err
	}

	scopes, err := g.Scope.Resolve(httpx.ParseSpaceDelimitedFields(form.Get("scope")), &client)
	if err != nil {
		return nil, err
	}

	return &Issuance{
		UserID:      user.ID,
		ClientID:    client.ID,
		Scopes:      scopes,
		WithIDToken: HasScope(scopes, "openid"),
		AuthTime:    time.Now(),
	}, nil
}

func (g *JWTBearerGrant) lookupIssuer(iss string) (TrustedIssuer, bool) {
	for _, t := range g.TrustedIssuers {
		if t.Issuer == iss {
			return t, true
		}
	}
	return TrustedIssuer{}, false
}

// resolveSubject maps the assertion's sub to a local account: user id first,
// username as fallback.
func (g *JWTBearerGrant) resolveSubject(ctx context.Context, tx store.Tx, sub string) (domain.UserAccount, error) {
	user, err := tx.Users().GetUserByID(ctx, sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.UserAccount{}, err
	}
	user, err = tx.Users().GetUserByUsername(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserAccount{}, ErrInvalidGrant.WithDescription("assertion subject is unknown")
		}
		return domain.UserAccount{}, err
	}
	return user, nil
}
