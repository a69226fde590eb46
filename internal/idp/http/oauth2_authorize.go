package http

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/jwtx"
	"github.com/tanukisoft/torii/pkg/slogx"
)

const (
	sessionCookieName = "torii_session"

	// sessionAudience marks session cookies so an ID token issued to a
	// client can never double as a login session.
	sessionAudience = "torii:session"
)

// AuthorizeHandler drives the browser-facing authorization flow: the entry
// endpoint plus the login and consent form submissions.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Keys             *jwtx.KeySet
	Issuer           string
	SessionTTL       time.Duration
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Sign in</h1>
<form method="post" action="/authorize/login">
<input type="hidden" name="request_id" value="{{.RequestID}}">
<label>Username <input type="text" name="username" autocomplete="username" value="{{.LoginHint}}"></label>
<label>Password <input type="password" name="password" autocomplete="current-password"></label>
{{if .Failed}}<p>Sign in failed. Check your username and password.</p>{{end}}
<button type="submit">Sign in</button>
</form>
</body>
</html>`))

var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorize {{.ClientName}}</title></head>
<body>
<h1>{{.ClientName}} is requesting access</h1>
<ul>
{{range .Scopes}}<li>{{.}}</li>{{end}}
</ul>
<form method="post" action="/authorize/consent">
<input type="hidden" name="request_id" value="{{.RequestID}}">
<label><input type="checkbox" name="remember" value="1"> Remember this decision</label>
<button type="submit" name="decision" value="allow">Allow</button>
<button type="submit" name="decision" value="deny">Deny</button>
</form>
</body>
</html>`))

// HandleBegin godoc
//
//	@Summary		OAuth2 Authorization Endpoint
//	@Description	Entry point of the authorization code, implicit and hybrid flows. Validates the
//	@Description	request, then either renders a login form, renders a consent form, or delivers
//	@Description	the authorization response to the client's redirect URI using the negotiated
//	@Description	response mode (query, fragment or form_post).
//	@Tags			OAuth2
//	@Produce		html
//	@Param			response_type			query		string	true	"Space-delimited response types (code, token, id_token)"
//	@Param			client_id				query		string	true	"Client identifier"
//	@Param			redirect_uri			query		string	false	"Callback URI, must match a registered redirect URI"
//	@Param			scope					query		string	false	"Space-delimited scopes"
//	@Param			state					query		string	false	"Opaque CSRF token, echoed back to the client"
//	@Param			nonce					query		string	false	"ID token replay binding (required when id_token is requested)"
//	@Param			response_mode			query		string	false	"query, fragment or form_post"
//	@Param			code_challenge			query		string	false	"PKCE code challenge"
//	@Param			code_challenge_method	query		string	false	"PKCE method (plain or S256)"
//	@Param			prompt					query		string	false	"none, login, consent or select_account"
//	@Param			max_age					query		int		false	"Maximum authentication age in seconds"
//	@Success		200						{string}	string	"Login form, consent form or form_post document"
//	@Success		302						{string}	string	"Redirect to redirect_uri"
//	@Failure		400						{object}	oauth2.Error
//	@Router			/authorize [get]
func (h *AuthorizeHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			oauth2.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
			return
		}
		query = r.PostForm
	}

	userID, authTime := h.resolveSession(r)
	result, err := h.AuthorizeService.Begin(r.Context(), query, userID, authTime)
	if err != nil {
		writeOAuth2Error(w, r, err, "authorization request rejected")
		return
	}

	h.renderStep(w, r, result)
}

// HandleLogin processes the login form submission for an in-flight
// authorization request.
func (h *AuthorizeHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauth2.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
		return
	}

	requestID := r.PostForm.Get("request_id")
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")

	result, err := h.AuthorizeService.Login(r.Context(), requestID, username, password)
	if errors.Is(err, service.ErrLoginFailed) {
		h.renderLogin(w, requestID, username, true)
		return
	}
	if err != nil {
		writeOAuth2Error(w, r, err, "login step failed")
		return
	}

	h.setSessionCookie(w, r, result.UserID)
	h.renderStep(w, r, result)
}

// HandleConsent processes the consent form submission.
func (h *AuthorizeHandler) HandleConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauth2.ErrInvalidRequest.WithDescription("malformed form body").WriteError(w)
		return
	}

	requestID := r.PostForm.Get("request_id")
	allow := r.PostForm.Get("decision") == "allow"
	remember := r.PostForm.Get("remember") == "1"

	result, err := h.AuthorizeService.Consent(r.Context(), requestID, allow, remember)
	if err != nil {
		writeOAuth2Error(w, r, err, "consent step failed")
		return
	}

	h.renderStep(w, r, result)
}

// renderStep turns a flow transition into an HTTP response: a login form, a
// consent form, a redirect, or a rendered form_post document.
func (h *AuthorizeHandler) renderStep(w http.ResponseWriter, r *http.Request, result *service.FlowResult) {
	switch result.Step {
	case service.StepLogin:
		h.renderLogin(w, result.RequestID, result.Options["login_hint"], false)

	case service.StepConsent:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		httpx.NoCache(w)
		err := consentTemplate.Execute(w, map[string]any{
			"RequestID":  result.RequestID,
			"ClientName": result.ClientName,
			"Scopes":     result.Scopes,
		})
		if err != nil {
			slogx.FromContext(r.Context()).Error("consent template render failed", "err", err)
		}

	case service.StepDone:
		h.deliver(w, result.Output)
	}
}

func (h *AuthorizeHandler) renderLogin(w http.ResponseWriter, requestID, loginHint string, failed bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	httpx.NoCache(w)
	_ = loginTemplate.Execute(w, map[string]any{
		"RequestID": requestID,
		"LoginHint": loginHint,
		"Failed":    failed,
	})
}

func (h *AuthorizeHandler) deliver(w http.ResponseWriter, out oauth2.ResponseOutput) {
	httpx.NoCache(w)
	if out.IsRedirect() {
		w.Header().Set("Location", out.Location)
		w.WriteHeader(http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

// resolveSession reads and verifies the login session cookie. Missing or
// invalid cookies mean no session; the flow falls back to the login screen.
func (h *AuthorizeHandler) resolveSession(r *http.Request) (string, time.Time) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", time.Time{}
	}

	claims, err := h.Keys.VerifyIDToken(cookie.Value, h.Issuer)
	if err != nil {
		return "", time.Time{}
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != sessionAudience {
		return "", time.Time{}
	}
	if claims.Subject == "" || claims.AuthTime == 0 {
		return "", time.Time{}
	}

	return claims.Subject, time.Unix(claims.AuthTime, 0)
}

// setSessionCookie establishes the login session after a successful
// authentication. The cookie value is a signed JWT, nothing is stored
// server side.
func (h *AuthorizeHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, userID string) {
	now := time.Now()
	claims := jwtx.NewIDTokenClaims(h.Issuer, userID, sessionAudience, "", now, h.SessionTTL, now)

	token, err := h.Keys.Signer().Sign(claims)
	if err != nil {
		slogx.FromContext(r.Context()).Error("session cookie mint failed", "err", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/authorize",
		MaxAge:   int(h.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
