package http

import (
	"net/http"

	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for ID token verification.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify ID tokens and session keys.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	jwtx.JWKS	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.JWKS())
	}
}
