package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/service"
	"github.com/tanukisoft/torii/pkg/httpx"
)

// RegistrationHandler serves the dynamic client registration endpoints:
// POST /register (RFC 7591) and GET|PUT|DELETE /configure/{client_id}
// (RFC 7592).
type RegistrationHandler struct {
	RegistrationService *service.RegistrationService
}

// HandleRegister godoc
//
//	@Summary		Dynamic Client Registration Endpoint
//	@Description	Registers a new OAuth2 client from its metadata (RFC 7591). Callers present an
//	@Description	initial access token as a bearer credential. The response includes the client
//	@Description	secret (for secret-based auth methods) and the registration access token; both
//	@Description	are shown exactly once.
//	@Tags			Registration
//	@Accept			json
//	@Produce		json
//	@Param			metadata	body		service.ClientMetadata	true	"Client metadata"
//	@Success		201			{object}	service.ClientInformation
//	@Failure		400			{object}	oauth2.Error
//	@Failure		401			{object}	oauth2.Error
//	@Router			/register [post]
func (h *RegistrationHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var meta service.ClientMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		oauth2.ErrInvalidRequest.WithDescription("malformed client metadata").WriteError(w)
		return
	}

	info, err := h.RegistrationService.Register(r.Context(), bearerToken(r), meta)
	if err != nil {
		writeOAuth2Error(w, r, err, "client registration failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, info)
}

// HandleGet godoc
//
//	@Summary		Read Client Configuration
//	@Description	Returns the registered metadata for a client (RFC 7592). Requires the
//	@Description	registration access token issued at registration time. The client secret is
//	@Description	never returned on reads.
//	@Tags			Registration
//	@Produce		json
//	@Param			client_id	path		string	true	"Client identifier"
//	@Success		200			{object}	service.ClientInformation
//	@Failure		401			{object}	oauth2.Error
//	@Router			/configure/{client_id} [get]
func (h *RegistrationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.RegistrationService.Get(r.Context(), r.PathValue("client_id"), bearerToken(r))
	if err != nil {
		writeOAuth2Error(w, r, err, "client configuration read failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, info)
}

// HandleUpdate godoc
//
//	@Summary		Update Client Configuration
//	@Description	Replaces the registered metadata for a client (RFC 7592). The token endpoint
//	@Description	auth method is immutable after registration.
//	@Tags			Registration
//	@Accept			json
//	@Produce		json
//	@Param			client_id	path		string					true	"Client identifier"
//	@Param			metadata	body		service.ClientMetadata	true	"Replacement client metadata"
//	@Success		200			{object}	service.ClientInformation
//	@Failure		400			{object}	oauth2.Error
//	@Failure		401			{object}	oauth2.Error
//	@Router			/configure/{client_id} [put]
func (h *RegistrationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var meta service.ClientMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		oauth2.ErrInvalidRequest.WithDescription("malformed client metadata").WriteError(w)
		return
	}

	info, err := h.RegistrationService.Update(r.Context(), r.PathValue("client_id"), bearerToken(r), meta)
	if err != nil {
		writeOAuth2Error(w, r, err, "client configuration update failed")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, info)
}

// HandleDelete godoc
//
//	@Summary		Delete Client Registration
//	@Description	Deprovisions a registered client (RFC 7592). Outstanding tokens stop working
//	@Description	and the registration access token is invalidated.
//	@Tags			Registration
//	@Param			client_id	path	string	true	"Client identifier"
//	@Success		204			"client deleted"
//	@Failure		401			{object}	oauth2.Error
//	@Router			/configure/{client_id} [delete]
func (h *RegistrationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.RegistrationService.Delete(r.Context(), r.PathValue("client_id"), bearerToken(r)); err != nil {
		writeOAuth2Error(w, r, err, "client deprovisioning failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bearerToken extracts the bearer credential from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
