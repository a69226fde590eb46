// Package oauth2 implements the protocol engine: error vocabulary, PKCE,
// scope policy, client authentication, grant types, response types and
// response modes. It has no HTTP routing of its own; handlers in
// internal/idp/http drive it.
package oauth2

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tanukisoft/torii/pkg/httpx"
)

// OAuth2/OIDC error codes per RFC 6749 and OIDC Core.
const (
	ErrorCodeInvalidRequest           = "invalid_request"
	ErrorCodeInvalidClient            = "invalid_client"
	ErrorCodeInvalidGrant             = "invalid_grant"
	ErrorCodeUnauthorizedClient       = "unauthorized_client"
	ErrorCodeUnsupportedGrantType     = "unsupported_grant_type"
	ErrorCodeUnsupportedResponseType  = "unsupported_response_type"
	ErrorCodeUnsupportedTokenType     = "unsupported_token_type"
	ErrorCodeInvalidScope             = "invalid_scope"
	ErrorCodeAccessDenied             = "access_denied"
	ErrorCodeServerError              = "server_error"
	ErrorCodeTemporarilyUnavailable   = "temporarily_unavailable"
	ErrorCodeLoginRequired            = "login_required"
	ErrorCodeConsentRequired          = "consent_required"
	ErrorCodeInteractionRequired      = "interaction_required"
	ErrorCodeAccountSelectionRequired = "account_selection_required"
	ErrorCodeInvalidRequestObject     = "invalid_request_object"
	ErrorCodeRequestNotSupported      = "request_not_supported"
	ErrorCodeRequestURINotSupported   = "request_uri_not_supported"
	ErrorCodeInvalidRequestURI        = "invalid_request_uri"
	ErrorCodeInvalidRedirectURI       = "invalid_redirect_uri"
)

// Error is a protocol-level error response. It carries the HTTP status for
// direct rendering and the wire code/description for both JSON bodies and
// redirect parameters.
type Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithDescription clones the error with a more specific description.
func (e *Error) WithDescription(format string, args ...any) *Error {
	return &Error{
		StatusCode:  e.StatusCode,
		Code:        e.Code,
		Description: fmt.Sprintf(format, args...),
	}
}

// WriteError writes the error as a JSON body with its HTTP status.
// invalid_client additionally carries a WWW-Authenticate challenge per
// RFC 6749 §5.2.
func (e *Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	if e.Code == ErrorCodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="torii"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// Params renders the error as redirect parameters per RFC 6749 §4.1.2.1.
// state is included when non-empty.
func (e *Error) Params(state string) map[string]string {
	p := map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	}
	if state != "" {
		p["state"] = state
	}
	return p
}

var (
	ErrInvalidRequest = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidClient = &Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidClient,
		Description: "client authentication failed",
	}

	ErrInvalidGrant = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidGrant,
		Description: "the provided grant is invalid, expired or revoked",
	}

	ErrUnauthorizedClient = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnauthorizedClient,
		Description: "the client is not authorized for this grant type",
	}

	ErrUnsupportedGrantType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "grant type not supported",
	}

	ErrUnsupportedResponseType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedResponseType,
		Description: "response type not supported",
	}

	ErrUnsupportedTokenType = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedTokenType,
		Description: "token type hint not supported",
	}

	ErrInvalidScope = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidScope,
		Description: "requested scope is invalid or exceeds the granted scope",
	}

	ErrAccessDenied = &Error{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "the resource owner denied the request",
	}

	ErrServerError = &Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrTemporarilyUnavailable = &Error{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeTemporarilyUnavailable,
		Description: "the service is temporarily unavailable",
	}

	ErrLoginRequired = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeLoginRequired,
		Description: "end-user authentication is required",
	}

	ErrConsentRequired = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeConsentRequired,
		Description: "end-user consent is required",
	}

	ErrInteractionRequired = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInteractionRequired,
		Description: "end-user interaction is required",
	}

	ErrAccountSelectionRequired = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAccountSelectionRequired,
		Description: "end-user account selection is required",
	}

	ErrInvalidRequestObject = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequestObject,
		Description: "the request object is invalid",
	}

	ErrRequestNotSupported = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRequestNotSupported,
		Description: "request objects are not supported",
	}

	ErrRequestURINotSupported = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeRequestURINotSupported,
		Description: "request_uri is not supported",
	}

	ErrInvalidRequestURI = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequestURI,
		Description: "the request_uri is invalid",
	}

	ErrInvalidRedirectURI = &Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRedirectURI,
		Description: "the redirect_uri does not match a registered value",
	}
)

// AsError extracts a protocol error, wrapping anything else as server_error.
func AsError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return ErrServerError
}
