package oauth2

import (
	"context"
	"strings"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

// Registered response type member names.
const (
	ResponseTypeCode    = "code"
	ResponseTypeToken   = "token"
	ResponseTypeIDToken = "id_token"
	ResponseTypeNone    = "none"
)

// Minter abstracts token creation for the response types, so implicit and
// hybrid flows mint through the same paths as the token endpoint.
type Minter interface {
	// MintAuthorizationCode persists a code bound to the request and
	// returns its presentable form.
	MintAuthorizationCode(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) (string, error)

	// MintAccessToken persists an access token and returns its presentable
	// form plus lifetime in seconds.
	MintAccessToken(ctx context.Context, tx store.Tx, iss *Issuance) (string, int, error)

	// MintIDToken signs an ID token. code and accessToken, when non-empty,
	// produce c_hash and at_hash claims.
	MintIDToken(ctx context.Context, iss *Issuance, code, accessToken string) (string, error)
}

// ResponseType is one member of a response_type value. Validate runs before
// any side effect across ALL members; Issue mints and records response
// parameters on the request.
type ResponseType interface {
	Name() string
	Validate(req *domain.AuthorizationRequest) error
	Issue(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) error
}

// ResponseTypeRegistry resolves a response_type value, compound hybrids
// included, into the ordered list of members to invoke. The order is fixed:
// code first (so hashes can reference it), then token, then id_token.
type ResponseTypeRegistry struct {
	members map[string]ResponseType
}

func NewResponseTypeRegistry(minter Minter) *ResponseTypeRegistry {
	r := &ResponseTypeRegistry{members: make(map[string]ResponseType)}
	for _, rt := range []ResponseType{
		&codeResponseType{minter: minter},
		&tokenResponseType{minter: minter},
		&idTokenResponseType{minter: minter},
		&noneResponseType{},
	} {
		r.members[rt.Name()] = rt
	}
	return r
}

// Resolve splits and orders a response_type value. Unknown members and
// "none" combined with anything else are unsupported_response_type.
func (r *ResponseTypeRegistry) Resolve(value string) ([]ResponseType, error) {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) == 0 {
		return nil, ErrInvalidRequest.WithDescription("response_type is required")
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if _, ok := r.members[f]; !ok {
			return nil, ErrUnsupportedResponseType.WithDescription("unknown response_type member %q", f)
		}
		if seen[f] {
			return nil, ErrInvalidRequest.WithDescription("duplicate response_type member %q", f)
		}
		seen[f] = true
	}
	if seen[ResponseTypeNone] && len(fields) > 1 {
		return nil, ErrUnsupportedResponseType.WithDescription("none cannot combine with other response types")
	}

	var ordered []ResponseType
	for _, name := range []string{ResponseTypeCode, ResponseTypeToken, ResponseTypeIDToken, ResponseTypeNone} {
		if seen[name] {
			ordered = append(ordered, r.members[name])
		}
	}
	return ordered, nil
}

// SupportedResponseTypes lists the values advertised in the discovery
// document.
func (r *ResponseTypeRegistry) SupportedResponseTypes() []string {
	return []string{
		"code", "token", "id_token", "none",
		"code token", "code id_token", "id_token token", "code id_token token",
	}
}

// DefaultResponseMode picks the mode a response_type value implies when the
// request does not override it: fragment whenever tokens travel in the
// response, query otherwise.
func DefaultResponseMode(responseType string) string {
	for _, f := range strings.Fields(responseType) {
		if f == ResponseTypeToken || f == ResponseTypeIDToken {
			return ResponseModeFragment
		}
	}
	return ResponseModeQuery
}

type codeResponseType struct {
	minter Minter
}

func (t *codeResponseType) Name() string { return ResponseTypeCode }

func (t *codeResponseType) Validate(req *domain.AuthorizationRequest) error { return nil }

func (t *codeResponseType) Issue(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) error {
	code, err := t.minter.MintAuthorizationCode(ctx, tx, req)
	if err != nil {
		return err
	}
	req.SetResponseParam("code", code)
	return nil
}

type tokenResponseType struct {
	minter Minter
}

func (t *tokenResponseType) Name() string { return ResponseTypeToken }

func (t *tokenResponseType) Validate(req *domain.AuthorizationRequest) error { return nil }

func (t *tokenResponseType) Issue(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) error {
	iss := &Issuance{
		UserID:   req.UserID,
		ClientID: req.ClientID,
		Scopes:   req.Scopes,
		Nonce:    req.Nonce,
		AuthTime: req.AuthTime,
	}
	token, expiresIn, err := t.minter.MintAccessToken(ctx, tx, iss)
	if err != nil {
		return err
	}
	req.SetResponseParam("access_token", token)
	req.SetResponseParam("token_type", TokenTypeBearer)
	req.SetResponseParam("expires_in", itoa(expiresIn))
	req.SetResponseParam("scope", strings.Join(req.Scopes, " "))
	return nil
}

type idTokenResponseType struct {
	minter Minter
}

func (t *idTokenResponseType) Name() string { return ResponseTypeIDToken }

// Validate enforces the OIDC nonce requirement before anything is minted.
func (t *idTokenResponseType) Validate(req *domain.AuthorizationRequest) error {
	if req.Nonce == "" {
		return ErrInvalidRequest.WithDescription("nonce is required when requesting an id_token")
	}
	return nil
}

func (t *idTokenResponseType) Issue(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) error {
	iss := &Issuance{
		UserID:   req.UserID,
		ClientID: req.ClientID,
		Scopes:   req.Scopes,
		Nonce:    req.Nonce,
		AuthTime: req.AuthTime,
	}
	// Earlier members already ran; their parameters feed the hash claims.
	idToken, err := t.minter.MintIDToken(ctx, iss,
		req.ResponseParams["code"], req.ResponseParams["access_token"])
	if err != nil {
		return err
	}
	req.SetResponseParam("id_token", idToken)
	return nil
}

type noneResponseType struct{}

func (t *noneResponseType) Name() string { return ResponseTypeNone }

func (t *noneResponseType) Validate(req *domain.AuthorizationRequest) error { return nil }

func (t *noneResponseType) Issue(ctx context.Context, tx store.Tx, req *domain.AuthorizationRequest) error {
	return nil
}
