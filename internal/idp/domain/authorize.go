package domain

import "time"

// Decision is the resource owner's tri-state answer on the consent screen.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionAllow
	DecisionDeny
)

// AuthorizationRequest is the transient aggregate carried through the
// multi-round-trip authorization flow. It is serialized into the correlation
// store under an opaque id between HTTP round trips, never held in process
// memory across them.
type AuthorizationRequest struct {
	ID string `json:"id"`

	// Raw query parameters from the entry request.
	Query map[string]string `json:"query"`

	ClientID    string   `json:"client_id"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`

	ResponseType string `json:"response_type"`
	ResponseMode string `json:"response_mode"`
	State        string `json:"state"`
	Nonce        string `json:"nonce"`

	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// UserID is empty until login resolves a resource owner.
	UserID   string    `json:"user_id,omitempty"`
	AuthTime time.Time `json:"auth_time,omitzero"`

	Decision Decision `json:"decision"`

	// ResponseParams accumulates the parameters each response type emits
	// (code, access_token, id_token, ...); the response mode encodes them.
	ResponseParams map[string]string `json:"response_params,omitempty"`

	// Options is the bag of display hints forwarded to the consent screen.
	Options map[string]string `json:"options,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasUserAccount reports whether login has resolved a resource owner.
func (r *AuthorizationRequest) HasUserAccount() bool {
	return r.UserID != ""
}

// SetResponseParam records a parameter for the final response.
func (r *AuthorizationRequest) SetResponseParam(key, value string) {
	if r.ResponseParams == nil {
		r.ResponseParams = make(map[string]string)
	}
	r.ResponseParams[key] = value
}
