package oauth2

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/jwtx"
)

// ClientAssertionTypeJWTBearer is the sole client_assertion_type we accept.
const ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientAuthenticator resolves and authenticates the client behind a token,
// introspection or revocation request. Exactly one method applies per
// client: presenting credentials inconsistent with the registered method is
// invalid_client.
type ClientAuthenticator struct {
	// TokenEndpoint is the expected audience of private_key_jwt assertions.
	TokenEndpoint string

	// AssertionTTL bounds how long a jti stays in the replay guard.
	AssertionTTL time.Duration
}

// credentials is what the request actually presented.
type credentials struct {
	clientID      string
	secret        string
	secretSource  string // "basic" | "post" | ""
	assertion     string
	assertionType string
}

// Authenticate identifies the client from the request and verifies its
// credentials against the registered token endpoint auth method.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, tx store.Tx, r *http.Request, form url.Values) (domain.Client, error) {
	creds, err := extractCredentials(r, form)
	if err != nil {
		return domain.Client{}, err
	}

	var client domain.Client
	if creds.assertion != "" && creds.clientID == "" {
		// private_key_jwt may identify the client via the assertion's
		// issuer alone; peek without verifying to find the registration.
		iss, perr := jwtx.PeekIssuer(creds.assertion)
		if perr != nil {
			return domain.Client{}, ErrInvalidClient.WithDescription("malformed client_assertion")
		}
		creds.clientID = iss
	}
	if creds.clientID == "" {
		return domain.Client{}, ErrInvalidClient.WithDescription("client identity not presented")
	}

	client, err = tx.Clients().GetClientByID(ctx, creds.clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}
	if client.Deleted {
		return domain.Client{}, ErrInvalidClient
	}

	switch client.TokenAuthMethod {
	case domain.AuthMethodNone:
		// Public client: any presented credential is a mismatch.
		if creds.secret != "" || creds.assertion != "" {
			return domain.Client{}, ErrInvalidClient.WithDescription("public client must not present credentials")
		}
		return client, nil

	case domain.AuthMethodSecretBasic:
		if creds.secretSource != "basic" || creds.secret == "" {
			return domain.Client{}, ErrInvalidClient.WithDescription("client_secret_basic authentication required")
		}
		return a.checkSecret(client, creds.secret)

	case domain.AuthMethodSecretPost:
		if creds.secretSource != "post" || creds.secret == "" {
			return domain.Client{}, ErrInvalidClient.WithDescription("client_secret_post authentication required")
		}
		return a.checkSecret(client, creds.secret)

	case domain.AuthMethodPrivateKeyJWT:
		if creds.assertion == "" {
			return domain.Client{}, ErrInvalidClient.WithDescription("client_assertion required")
		}
		if creds.assertionType != ClientAssertionTypeJWTBearer {
			return domain.Client{}, ErrInvalidClient.WithDescription("unsupported client_assertion_type")
		}
		return a.checkAssertion(ctx, tx, client, creds.assertion)

	default:
		return domain.Client{}, ErrInvalidClient.WithDescription("client has no usable authentication method")
	}
}

func (a *ClientAuthenticator) checkSecret(client domain.Client, secret string) (domain.Client, error) {
	if err := cryptox.VerifySecret(secret, client.SecretHash); err != nil {
		return domain.Client{}, ErrInvalidClient
	}
	return client, nil
}

func (a *ClientAuthenticator) checkAssertion(ctx context.Context, tx store.Tx, client domain.Client, assertion string) (domain.Client, error) {
	if client.JWKS == "" {
		return domain.Client{}, ErrInvalidClient.WithDescription("client has no registered keys")
	}

	claims, err := jwtx.VerifyAssertion(assertion, []byte(client.JWKS), client.AssertionAlgs, a.TokenEndpoint)
	if err != nil {
		return domain.Client{}, ErrInvalidClient.WithDescription("client_assertion verification failed")
	}
	if claims.Issuer != client.ID || claims.Subject != client.ID {
		return domain.Client{}, ErrInvalidClient.WithDescription("client_assertion issuer/subject mismatch")
	}
	if claims.ID == "" {
		return domain.Client{}, ErrInvalidClient.WithDescription("client_assertion missing jti")
	}

	// Replay guard: the first insert of a jti wins.
	expires := time.Now().Add(a.AssertionTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := tx.Assertions().RecordAssertion(ctx, claims.ID, client.ID, expires); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Client{}, ErrInvalidClient.WithDescription("client_assertion replayed")
		}
		return domain.Client{}, err
	}

	return client, nil
}

// extractCredentials collects whatever the request presented without judging
// it yet; the registered method decides what is acceptable.
func extractCredentials(r *http.Request, form url.Values) (credentials, error) {
	var creds credentials

	if id, secret, ok := r.BasicAuth(); ok {
		creds.clientID = id
		creds.secret = secret
		creds.secretSource = "basic"
	}

	if id := form.Get("client_id"); id != "" {
		if creds.clientID != "" && creds.clientID != id {
			return credentials{}, ErrInvalidRequest.WithDescription("client_id mismatch between header and body")
		}
		creds.clientID = id
	}
	if secret := form.Get("client_secret"); secret != "" {
		if creds.secretSource == "basic" {
			// Two simultaneous secret presentations is malformed.
			return credentials{}, ErrInvalidRequest.WithDescription("multiple client authentication methods presented")
		}
		creds.secret = secret
		creds.secretSource = "post"
	}

	creds.assertion = form.Get("client_assertion")
	creds.assertionType = form.Get("client_assertion_type")
	if creds.assertion != "" && creds.secret != "" {
		return credentials{}, ErrInvalidRequest.WithDescription("multiple client authentication methods presented")
	}

	return creds, nil
}
