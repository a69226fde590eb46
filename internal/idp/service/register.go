package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/idx"
	"github.com/tanukisoft/torii/pkg/slogx"
)

// ClientMetadata is the RFC 7591 registration request body (the subset this
// server supports).
type ClientMetadata struct {
	ClientName              string          `json:"client_name"`
	RedirectURIs            []string        `json:"redirect_uris"`
	RequestURIs             []string        `json:"request_uris,omitempty"`
	TokenEndpointAuthMethod string          `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string        `json:"grant_types,omitempty"`
	ResponseTypes           []string        `json:"response_types,omitempty"`
	Scope                   string          `json:"scope,omitempty"`
	JWKS                    json.RawMessage `json:"jwks,omitempty"`
}

// ClientInformation is the RFC 7591 registration response. ClientSecret and
// RegistrationAccessToken appear exactly once, at creation.
type ClientInformation struct {
	ClientID                string `json:"client_id"`
	ClientSecret            string `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64  `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64  `json:"client_secret_expires_at,omitempty"`
	RegistrationAccessToken string `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string `json:"registration_client_uri,omitempty"`

	ClientMetadata
}

var registrableAuthMethods = []string{
	domain.AuthMethodNone,
	domain.AuthMethodSecretBasic,
	domain.AuthMethodSecretPost,
	domain.AuthMethodPrivateKeyJWT,
}

// RegistrationService implements dynamic client registration (RFC 7591) and
// the management endpoints (RFC 7592). Registration is gated on a
// pre-provisioned initial access token.
type RegistrationService struct {
	Store store.Store
	Scope *oauth2.ScopePolicy

	// Issuer builds the registration_client_uri returned to new clients.
	Issuer string
}

// Register creates a client from the supplied metadata. The initial access
// token authorizes the call and stays valid for further registrations until
// it expires.
func (s *RegistrationService) Register(ctx context.Context, initialToken string, meta ClientMetadata) (*ClientInformation, error) {
	ctx, span := tracer.Start(ctx, "register")
	defer span.End()

	l := slogx.FromContext(ctx)

	if initialToken == "" {
		return nil, oauth2.ErrInvalidClient.WithDescription("initial access token required")
	}
	iat, err := s.Store.InitialAccessTokens().GetInitialAccessTokenByHash(ctx, cryptox.FingerprintToken(initialToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth2.ErrInvalidClient.WithDescription("initial access token required")
		}
		return nil, err
	}
	if !iat.Valid(time.Now()) {
		return nil, oauth2.ErrInvalidClient.WithDescription("initial access token expired or revoked")
	}

	client, err := s.clientFromMetadata(meta)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	client.ID = idx.New().String()
	client.CreatedAt = now
	client.UpdatedAt = now

	var secretPlain string
	if client.TokenAuthMethod == domain.AuthMethodSecretBasic || client.TokenAuthMethod == domain.AuthMethodSecretPost {
		secretPlain = cryptox.MustGenerateToken(cryptox.TokenSize256)
		if client.SecretHash, err = cryptox.HashSecret(secretPlain); err != nil {
			return nil, err
		}
	}

	regToken := cryptox.MustGenerateToken(cryptox.TokenSize256)
	client.RegistrationTokenHash = cryptox.FingerprintToken(regToken)

	if err := s.Store.Clients().CreateClient(ctx, client); err != nil {
		return nil, err
	}
	l.Info("client registered", "client_id", client.ID, "auth_method", client.TokenAuthMethod)

	info := s.information(client)
	info.ClientSecret = secretPlain
	info.RegistrationAccessToken = regToken
	return info, nil
}

// Get returns the current registration, authorized by the registration
// access token issued at creation.
func (s *RegistrationService) Get(ctx context.Context, clientID, regToken string) (*ClientInformation, error) {
	client, err := s.authorizeManagement(ctx, clientID, regToken)
	if err != nil {
		return nil, err
	}
	return s.information(client), nil
}

// Update replaces the mutable registration parameters. The client id and
// secret survive; redirect URIs, scopes, grant/response types and keys are
// replaced wholesale.
func (s *RegistrationService) Update(ctx context.Context, clientID, regToken string, meta ClientMetadata) (*ClientInformation, error) {
	client, err := s.authorizeManagement(ctx, clientID, regToken)
	if err != nil {
		return nil, err
	}

	updated, err := s.clientFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	if updated.TokenAuthMethod != client.TokenAuthMethod {
		return nil, oauth2.ErrInvalidRequest.WithDescription("token_endpoint_auth_method cannot change")
	}

	updated.ID = client.ID
	updated.SecretHash = client.SecretHash
	updated.RegistrationTokenHash = client.RegistrationTokenHash
	updated.OwnerUserID = client.OwnerUserID
	updated.CreatedAt = client.CreatedAt
	updated.UpdatedAt = time.Now()

	if err := s.Store.Clients().UpdateClient(ctx, updated); err != nil {
		return nil, err
	}
	return s.information(updated), nil
}

// Delete soft-deletes the registration; the id stays reserved.
func (s *RegistrationService) Delete(ctx context.Context, clientID, regToken string) error {
	client, err := s.authorizeManagement(ctx, clientID, regToken)
	if err != nil {
		return err
	}
	return s.Store.Clients().MarkClientDeleted(ctx, client.ID)
}

func (s *RegistrationService) authorizeManagement(ctx context.Context, clientID, regToken string) (domain.Client, error) {
	if clientID == "" || regToken == "" {
		return domain.Client{}, oauth2.ErrInvalidClient
	}
	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, oauth2.ErrInvalidClient
		}
		return domain.Client{}, err
	}
	if client.Deleted || client.RegistrationTokenHash == "" ||
		client.RegistrationTokenHash != cryptox.FingerprintToken(regToken) {
		return domain.Client{}, oauth2.ErrInvalidClient
	}
	return client, nil
}

// clientFromMetadata validates and normalizes a registration body.
func (s *RegistrationService) clientFromMetadata(meta ClientMetadata) (domain.Client, error) {
	if len(meta.RedirectURIs) == 0 {
		return domain.Client{}, oauth2.ErrInvalidRequest.WithDescription("redirect_uris is required")
	}
	for _, u := range meta.RedirectURIs {
		if u == "" || strings.Contains(u, "#") {
			return domain.Client{}, oauth2.ErrInvalidRequest.WithDescription("invalid redirect_uri %q", u)
		}
	}

	method := meta.TokenEndpointAuthMethod
	if method == "" {
		method = domain.AuthMethodSecretBasic
	}
	if !slices.Contains(registrableAuthMethods, method) {
		return domain.Client{}, oauth2.ErrInvalidRequest.WithDescription("unsupported token_endpoint_auth_method %q", method)
	}
	if method == domain.AuthMethodPrivateKeyJWT && len(meta.JWKS) == 0 {
		return domain.Client{}, oauth2.ErrInvalidRequest.WithDescription("private_key_jwt requires jwks")
	}

	grantTypes := meta.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{oauth2.GrantTypeAuthorizationCode}
	}
	responseTypes := meta.ResponseTypes
	if len(responseTypes) == 0 && slices.Contains(grantTypes, oauth2.GrantTypeAuthorizationCode) {
		responseTypes = []string{oauth2.ResponseTypeCode}
	}

	scopes := strings.Fields(meta.Scope)
	for _, sc := range scopes {
		if s.Scope != nil && !s.Scope.IsSupported(sc) {
			return domain.Client{}, oauth2.ErrInvalidScope.WithDescription("unknown scope %q", sc)
		}
	}

	return domain.Client{
		Name:            meta.ClientName,
		TokenAuthMethod: method,
		GrantTypes:      grantTypes,
		ResponseTypes:   responseTypes,
		RedirectURIs:    meta.RedirectURIs,
		RequestURIs:     meta.RequestURIs,
		Scopes:          scopes,
		JWKS:            string(meta.JWKS),
	}, nil
}

func (s *RegistrationService) information(client domain.Client) *ClientInformation {
	info := &ClientInformation{
		ClientID:         client.ID,
		ClientIDIssuedAt: client.CreatedAt.Unix(),
		ClientMetadata: ClientMetadata{
			ClientName:              client.Name,
			RedirectURIs:            client.RedirectURIs,
			RequestURIs:             client.RequestURIs,
			TokenEndpointAuthMethod: client.TokenAuthMethod,
			GrantTypes:              client.GrantTypes,
			ResponseTypes:           client.ResponseTypes,
			Scope:                   strings.Join(client.Scopes, " "),
		},
	}
	if client.JWKS != "" {
		info.JWKS = json.RawMessage(client.JWKS)
	}
	if s.Issuer != "" {
		info.RegistrationClientURI = strings.TrimRight(s.Issuer, "/") + "/configure/" + client.ID
	}
	return info
}
