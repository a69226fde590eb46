package http

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/slogx"
)

// callbackPattern restricts JSONP callback names to plain identifiers so the
// wrapped response can never inject script.
var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// RevokeHandler serves GET|POST /token/revocation (RFC 7009).
type RevokeHandler struct {
	RevocationService *service.RevocationService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes an access or refresh token (RFC 7009). Revoking a refresh token also
//	@Description	revokes the access tokens minted alongside it. Revoking an unknown token
//	@Description	succeeds; revoking a token owned by a different client is an error. When a
//	@Description	callback parameter is present the result is wrapped JSONP-style.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"access_token or refresh_token"
//	@Param			callback		formData	string	false	"JSONP callback name"
//	@Success		200				{object}	map[string]any	"empty object"
//	@Failure		400				{object}	oauth2.Error	"error, error_description"
//	@Failure		401				{object}	oauth2.Error	"error, error_description"
//	@Router			/token/revocation [post]
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var form url.Values
	switch r.Method {
	case http.MethodGet:
		form = r.URL.Query()
	default:
		if ct := r.Header.Get("Content-Type"); ct != "" &&
			!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			oauth2.ErrInvalidRequest.WithDescription("content type must be application/x-www-form-urlencoded").WriteError(w)
			return
		}
		if err := r.ParseForm(); err != nil {
			oauth2.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
			return
		}
		form = r.PostForm
	}

	callback := form.Get("callback")
	if callback != "" && !callbackPattern.MatchString(callback) {
		oauth2.ErrInvalidRequest.WithDescription("invalid callback parameter").WriteError(w)
		return
	}

	if form.Get("token") == "" {
		h.respond(w, r, callback, oauth2.ErrInvalidRequest.WithDescription("token is required"))
		return
	}

	err := h.RevocationService.Revoke(r.Context(), r, form)
	if err != nil {
		oe := oauth2.AsError(err)
		if oe == oauth2.ErrServerError {
			slogx.FromContext(r.Context()).Error("revocation failed", "err", err)
		}
		h.respond(w, r, callback, oe)
		return
	}

	h.respond(w, r, callback, nil)
}

// respond writes the revocation outcome, JSONP-wrapped when a callback was
// requested. JSONP responses always carry HTTP 200; the error lives in the
// payload.
func (h *RevokeHandler) respond(w http.ResponseWriter, r *http.Request, callback string, oe *oauth2.Error) {
	httpx.NoCache(w)

	if callback == "" {
		if oe != nil {
			oe.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{})
		return
	}

	body := "{}"
	if oe != nil {
		body = `{"error":"` + oe.Code + `"}`
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callback + "(" + body + ");"))
}
