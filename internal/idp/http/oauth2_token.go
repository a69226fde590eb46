package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/slogx"
)

// TokenHandler serves POST /token.
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues access, refresh and ID tokens. Supported grant types: authorization_code,
//	@Description	refresh_token, client_credentials, password and urn:ietf:params:oauth:grant-type:jwt-bearer.
//	@Description	Confidential clients authenticate with client_secret_basic, client_secret_post or
//	@Description	private_key_jwt; public clients send client_id only.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type				formData	string				true	"Grant type"
//	@Param			code					formData	string				false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri			formData	string				false	"Redirect URI used on the authorization request"
//	@Param			code_verifier			formData	string				false	"PKCE code verifier"
//	@Param			refresh_token			formData	string				false	"Refresh token (refresh_token grant)"
//	@Param			username				formData	string				false	"Resource owner username (password grant)"
//	@Param			password				formData	string				false	"Resource owner password (password grant)"
//	@Param			assertion				formData	string				false	"Signed JWT assertion (jwt-bearer grant)"
//	@Param			client_id				formData	string				false	"Client identifier"
//	@Param			client_secret			formData	string				false	"Client secret (client_secret_post)"
//	@Param			client_assertion		formData	string				false	"Client authentication JWT (private_key_jwt)"
//	@Param			client_assertion_type	formData	string				false	"Must be urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
//	@Param			scope					formData	string				false	"Space-delimited list of scopes"
//	@Success		200						{object}	domain.TokenPair	"access_token, token_type, expires_in, refresh_token, id_token, scope"
//	@Failure		400						{object}	oauth2.Error		"error, error_description"
//	@Failure		401						{object}	oauth2.Error		"error, error_description"
//	@Failure		500						{object}	oauth2.Error		"error, error_description"
//	@Header			200						{string}	Cache-Control		"no-store"
//	@Router			/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauth2.ErrInvalidRequest.WithDescription("content type must be application/x-www-form-urlencoded").WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauth2.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
		return
	}

	pair, err := h.TokenService.Exchange(r.Context(), r, r.PostForm)
	if err != nil {
		writeOAuth2Error(w, r, err, "token exchange failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// writeOAuth2Error renders a protocol error, downgrading everything
// unexpected to server_error so internals never leak to clients.
func writeOAuth2Error(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var oe *oauth2.Error
	if !errors.As(err, &oe) {
		slogx.FromContext(r.Context()).Error(msg, "err", err)
		oe = oauth2.ErrServerError
	}
	oe.WriteError(w)
}
