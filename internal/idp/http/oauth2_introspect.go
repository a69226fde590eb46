package http

import (
	"net/http"
	"strings"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/pkg/httpx"
)

// IntrospectHandler serves POST /token/introspection (RFC 7662). Only
// registered resource servers may introspect; they authenticate with HTTP
// basic credentials.
type IntrospectHandler struct {
	IntrospectionService *service.IntrospectionService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection Endpoint
//	@Description	Returns the state of an access token, refresh token or authorization code
//	@Description	(RFC 7662). Callers must be registered resource servers authenticating with
//	@Description	HTTP basic credentials. Unknown, expired or foreign tokens introspect as
//	@Description	inactive rather than erroring.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string							true	"The token to introspect"
//	@Param			token_type_hint	formData	string							false	"access_token, refresh_token or authorization_code"
//	@Success		200				{object}	service.IntrospectionResponse	"active plus token metadata when active"
//	@Failure		401				{object}	oauth2.Error					"error, error_description"
//	@Router			/token/introspection [post]
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauth2.ErrInvalidRequest.WithDescription("content type must be application/x-www-form-urlencoded").WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		oauth2.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
		return
	}

	rsID, rsSecret, ok := r.BasicAuth()
	if !ok {
		oauth2.ErrInvalidClient.WithDescription("resource server authentication required").WriteError(w)
		return
	}
	if err := h.IntrospectionService.AuthenticateResourceServer(r.Context(), rsID, rsSecret); err != nil {
		writeOAuth2Error(w, r, err, "resource server authentication failed")
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		oauth2.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	resp, err := h.IntrospectionService.Introspect(r.Context(), rsID, token, r.PostForm.Get("token_type_hint"))
	if err != nil {
		writeOAuth2Error(w, r, err, "introspection failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
