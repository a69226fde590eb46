package http

import (
	"net/http"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/pkg/httpx"
)

// DiscoveryDocument is the OpenID Provider Metadata published on
// /.well-known/openid-configuration.
type DiscoveryDocument struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint"`
	JWKSURI                       string   `json:"jwks_uri"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	ResponseModesSupported        []string `json:"response_modes_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
	SubjectTypesSupported         []string `json:"subject_types_supported"`
	IDTokenSigningAlgsSupported   []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	ClaimsParameterSupported      bool     `json:"claims_parameter_supported"`
	RequestParameterSupported     bool     `json:"request_parameter_supported"`
	RequestURIParameterSupported  bool     `json:"request_uri_parameter_supported"`
}

// DiscoveryHandler godoc
//
//	@Summary		OpenID Provider Configuration
//	@Description	Returns the OpenID Provider Metadata document describing the server's
//	@Description	endpoints and capabilities.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	DiscoveryDocument
//	@Router			/.well-known/openid-configuration [get]
func DiscoveryHandler(issuer string, scope *oauth2.ScopePolicy, grants *oauth2.GrantRegistry, responses *oauth2.ResponseTypeRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := DiscoveryDocument{
			Issuer:                issuer,
			AuthorizationEndpoint: issuer + "/authorize",
			TokenEndpoint:         issuer + "/token",
			IntrospectionEndpoint: issuer + "/token/introspection",
			RevocationEndpoint:    issuer + "/token/revocation",
			RegistrationEndpoint:  issuer + "/register",
			JWKSURI:               issuer + "/.well-known/jwks.json",
			ResponseModesSupported: []string{
				oauth2.ResponseModeQuery,
				oauth2.ResponseModeFragment,
				oauth2.ResponseModeFormPost,
			},
			TokenEndpointAuthMethods: []string{
				"client_secret_basic",
				"client_secret_post",
				"private_key_jwt",
				"none",
			},
			SubjectTypesSupported:         []string{"public"},
			IDTokenSigningAlgsSupported:   []string{"EdDSA"},
			CodeChallengeMethodsSupported: []string{"plain", "S256"},
		}
		if scope != nil {
			doc.ScopesSupported = scope.Supported
		}
		if grants != nil {
			doc.GrantTypesSupported = grants.GrantTypes()
		}
		if responses != nil {
			doc.ResponseTypesSupported = responses.SupportedResponseTypes()
		}

		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}
