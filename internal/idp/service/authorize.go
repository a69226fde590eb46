package service

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/oauth2"
	"github.com/tanukisoft/torii/internal/idp/store"
	"github.com/tanukisoft/torii/pkg/cryptox"
	"github.com/tanukisoft/torii/pkg/httpx"
	"github.com/tanukisoft/torii/pkg/slogx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrLoginFailed is returned by Login on bad resource owner credentials so
// the handler can re-render the login form instead of failing the flow.
var ErrLoginFailed = errors.New("service: login failed")

// Step tells the HTTP layer what to render next.
type Step int

const (
	// StepLogin: no resource owner yet, show the login screen.
	StepLogin Step = iota

	// StepConsent: authenticated, but the consent decision is pending.
	StepConsent

	// StepDone: the flow is finished; Output carries the response (success
	// or a redirect-delivered error).
	StepDone
)

// FlowResult is the outcome of one state-machine transition.
type FlowResult struct {
	RequestID string
	Step      Step

	// Output is set when Step == StepDone.
	Output oauth2.ResponseOutput

	// Consent-screen rendering data, set when Step == StepConsent.
	ClientName string
	Scopes     []string
	Options    map[string]string

	// UserID is set after a successful login so the caller can establish
	// a session for the authenticated account.
	UserID string
}

// AuthorizeService drives the multi-round-trip authorization flow. The
// in-flight request lives in the correlation store between round trips;
// nothing is held in process memory.
type AuthorizeService struct {
	Store     store.Store
	Tokens    *TokenService
	Responses *oauth2.ResponseTypeRegistry
	Scope     *oauth2.ScopePolicy

	// RequestTTL bounds how long an in-flight flow may dangle.
	RequestTTL time.Duration

	// AllowModeOverride lets clients pick response_mode explicitly instead
	// of the response type's default.
	AllowModeOverride bool
}

var promptValues = []string{"none", "login", "consent", "select_account"}

// Begin is the entry endpoint: parameter validation, request persistence and
// user discovery. sessionUser carries the already-authenticated resource
// owner (with their auth time) when the transport layer has a session;
// empty id means nobody is logged in.
func (s *AuthorizeService) Begin(ctx context.Context, query url.Values, sessionUserID string, sessionAuthTime time.Time) (*FlowResult, error) {
	ctx, span := tracer.Start(ctx, "authorize.begin")
	defer span.End()

	// Everything before the redirect URI is validated renders directly to
	// the user agent; never redirect an error to an unverified URI.
	clientID := query.Get("client_id")
	if clientID == "" {
		return nil, oauth2.ErrInvalidRequest.WithDescription("client_id is required")
	}
	span.SetAttributes(attribute.String("oauth.client_id", clientID))

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth2.ErrInvalidRequest.WithDescription("unknown client")
		}
		return nil, err
	}
	if client.Deleted {
		return nil, oauth2.ErrInvalidRequest.WithDescription("unknown client")
	}

	redirectURI := query.Get("redirect_uri")
	if redirectURI == "" || !client.AllowsRedirectURI(redirectURI) {
		return nil, oauth2.ErrInvalidRedirectURI
	}

	req := &domain.AuthorizationRequest{
		ID:          cryptox.MustGenerateToken(cryptox.TokenSize128),
		Query:       flattenQuery(query),
		ClientID:    client.ID,
		RedirectURI: redirectURI,
		State:       query.Get("state"),
		Nonce:       query.Get("nonce"),
		CreatedAt:   time.Now(),
	}

	// From here on errors travel back to the client via the redirect URI.
	if fr, ferr := s.validateEntry(ctx, req, &client, query); ferr != nil || fr != nil {
		return fr, ferr
	}

	if err := s.discoverUser(ctx, req, query, sessionUserID, sessionAuthTime); err != nil {
		return s.failRedirect(req, oauth2.AsError(err))
	}

	if err := s.Store.AuthzRequests().PutAuthzRequest(ctx, *req, s.RequestTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, oauth2.ErrServerError
	}

	return s.advance(ctx, req, query.Get("prompt"))
}

// validateEntry checks every parameter that can fail after the redirect URI
// is known. A non-nil FlowResult is an error redirect.
func (s *AuthorizeService) validateEntry(ctx context.Context, req *domain.AuthorizationRequest, client *domain.Client, query url.Values) (*FlowResult, error) {
	if query.Get("request") != "" {
		return s.failRedirect(req, oauth2.ErrRequestNotSupported)
	}
	if query.Get("request_uri") != "" {
		return s.failRedirect(req, oauth2.ErrRequestURINotSupported)
	}

	responseType := query.Get("response_type")
	members, err := s.Responses.Resolve(responseType)
	if err != nil {
		return s.failRedirect(req, oauth2.AsError(err))
	}
	if !client.AllowsResponseType(responseType) {
		return s.failRedirect(req, oauth2.ErrUnauthorizedClient.WithDescription("response_type not registered for the client"))
	}
	req.ResponseType = responseType

	mode := oauth2.DefaultResponseMode(responseType)
	if requested := query.Get("response_mode"); requested != "" && s.AllowModeOverride {
		if !oauth2.ValidResponseMode(requested) {
			return s.failRedirect(req, oauth2.ErrInvalidRequest.WithDescription("unsupported response_mode"))
		}
		// Tokens must never travel in a query string.
		if requested == oauth2.ResponseModeQuery && oauth2.DefaultResponseMode(responseType) == oauth2.ResponseModeFragment {
			return s.failRedirect(req, oauth2.ErrInvalidRequest.WithDescription("response_mode=query cannot carry tokens"))
		}
		mode = requested
	}
	req.ResponseMode = mode

	scopes, err := s.Scope.Resolve(httpx.ParseSpaceDelimitedFields(query.Get("scope")), client)
	if err != nil {
		return s.failRedirect(req, oauth2.AsError(err))
	}
	req.Scopes = scopes

	if challenge := query.Get("code_challenge"); challenge != "" {
		method, err := oauth2.NormalizePKCEMethod(query.Get("code_challenge_method"))
		if err != nil {
			return s.failRedirect(req, oauth2.AsError(err))
		}
		req.CodeChallenge = challenge
		req.CodeChallengeMethod = method
	} else if query.Get("code_challenge_method") != "" {
		return s.failRedirect(req, oauth2.ErrInvalidRequest.WithDescription("code_challenge_method without code_challenge"))
	}

	if prompt := query.Get("prompt"); prompt != "" {
		fields := strings.Fields(prompt)
		for _, p := range fields {
			if !slices.Contains(promptValues, p) {
				return s.failRedirect(req, oauth2.ErrInvalidRequest.WithDescription("unsupported prompt value %q", p))
			}
		}
		if slices.Contains(fields, "none") && len(fields) > 1 {
			return s.failRedirect(req, oauth2.ErrInvalidRequest.WithDescription("prompt=none cannot combine with other values"))
		}
	}

	if maxAge := query.Get("max_age"); maxAge != "" {
		if n, err := strconv.Atoi(maxAge); err != nil || n < 0 {
			return s.failRedirect(req, oauth2.ErrInvalidRequest.WithDescription("max_age must be a non-negative integer"))
		}
	}

	// Run every member's precondition before any side effect can happen.
	for _, m := range members {
		if err := m.Validate(req); err != nil {
			return s.failRedirect(req, oauth2.AsError(err))
		}
	}

	// Display hints for the consent screen.
	opts := make(map[string]string)
	for _, k := range []string{"display", "ui_locales", "login_hint"} {
		if v := query.Get(k); v != "" {
			opts[k] = v
		}
	}
	if len(opts) > 0 {
		req.Options = opts
	}

	return nil, nil
}

// discoverUser resolves the resource owner before any screen is shown,
// honoring prompt and max_age.
func (s *AuthorizeService) discoverUser(ctx context.Context, req *domain.AuthorizationRequest, query url.Values, sessionUserID string, sessionAuthTime time.Time) error {
	prompt := strings.Fields(query.Get("prompt"))
	forceLogin := slices.Contains(prompt, "login")

	if maxAge := query.Get("max_age"); maxAge != "" && sessionUserID != "" {
		n, _ := strconv.Atoi(maxAge)
		if time.Since(sessionAuthTime) > time.Duration(n)*time.Second {
			forceLogin = true
		}
	}

	if sessionUserID != "" && !forceLogin {
		req.UserID = sessionUserID
		req.AuthTime = sessionAuthTime
	}

	// id_token_hint narrows which account must be logged in.
	if hint := query.Get("id_token_hint"); hint != "" && req.UserID != "" {
		claims, err := s.Tokens.Keys.VerifyIDToken(hint, s.Tokens.Issuer)
		if err != nil {
			return oauth2.ErrInvalidRequest.WithDescription("id_token_hint verification failed")
		}
		if claims.Subject != req.UserID {
			req.UserID = ""
			req.AuthTime = time.Time{}
		}
	}

	if slices.Contains(prompt, "none") && req.UserID == "" {
		return oauth2.ErrLoginRequired
	}
	return nil
}

// Login resolves the resource owner mid-flow and advances the state machine.
func (s *AuthorizeService) Login(ctx context.Context, requestID, username, password string) (*FlowResult, error) {
	ctx, span := tracer.Start(ctx, "authorize.login")
	defer span.End()

	req, err := s.Store.AuthzRequests().GetAuthzRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth2.ErrInvalidRequest.WithDescription("unknown or expired authorization id")
		}
		return nil, err
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLoginFailed
		}
		return nil, err
	}
	if err := cryptox.VerifySecret(password, user.PasswordHash); err != nil {
		return nil, ErrLoginFailed
	}

	req.UserID = user.ID
	req.AuthTime = time.Now()
	if err := s.Store.AuthzRequests().UpdateAuthzRequest(ctx, req); err != nil {
		return nil, err
	}

	res, err := s.advance(ctx, &req, req.Query["prompt"])
	if err != nil {
		return nil, err
	}
	res.UserID = user.ID
	return res, nil
}

// Consent records the allow/deny decision and finishes the flow.
func (s *AuthorizeService) Consent(ctx context.Context, requestID string, allow, remember bool) (*FlowResult, error) {
	ctx, span := tracer.Start(ctx, "authorize.consent")
	defer span.End()

	req, err := s.Store.AuthzRequests().GetAuthzRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth2.ErrInvalidRequest.WithDescription("unknown or expired authorization id")
		}
		return nil, err
	}
	if !req.HasUserAccount() {
		return nil, oauth2.ErrInvalidRequest.WithDescription("consent before login")
	}

	if allow {
		req.Decision = domain.DecisionAllow
		if remember {
			err := s.Store.Consents().UpsertConsent(ctx, domain.Consent{
				UserID:    req.UserID,
				ClientID:  req.ClientID,
				Scopes:    req.Scopes,
				GrantedAt: time.Now(),
			})
			if err != nil {
				return nil, err
			}
		}
	} else {
		req.Decision = domain.DecisionDeny
	}

	if err := s.Store.AuthzRequests().UpdateAuthzRequest(ctx, req); err != nil {
		return nil, err
	}
	return s.Finish(ctx, requestID)
}

// advance moves a request as far as it can go without user interaction.
func (s *AuthorizeService) advance(ctx context.Context, req *domain.AuthorizationRequest, prompt string) (*FlowResult, error) {
	if !req.HasUserAccount() {
		return &FlowResult{RequestID: req.ID, Step: StepLogin, Options: req.Options}, nil
	}

	promptFields := strings.Fields(prompt)
	needsConsent := true
	if !slices.Contains(promptFields, "consent") {
		consent, err := s.Store.Consents().GetConsent(ctx, req.UserID, req.ClientID)
		if err == nil && consent.Covers(req.Scopes) {
			needsConsent = false
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if needsConsent {
		if slices.Contains(promptFields, "none") {
			// Drop the stored request before redirecting the failure.
			_, _ = s.Store.AuthzRequests().TakeAuthzRequest(ctx, req.ID)
			return s.failRedirect(req, oauth2.ErrConsentRequired)
		}
		client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
		if err != nil {
			return nil, err
		}
		return &FlowResult{
			RequestID:  req.ID,
			Step:       StepConsent,
			ClientName: client.Name,
			Scopes:     req.Scopes,
			Options:    req.Options,
		}, nil
	}

	req.Decision = domain.DecisionAllow
	if err := s.Store.AuthzRequests().UpdateAuthzRequest(ctx, *req); err != nil {
		return nil, err
	}
	return s.Finish(ctx, req.ID)
}

// Finish takes the correlation entry exactly once and builds the final
// response. Re-submission of the same id after this point cannot
// re-process: the Take removed the entry atomically.
func (s *AuthorizeService) Finish(ctx context.Context, requestID string) (*FlowResult, error) {
	ctx, span := tracer.Start(ctx, "authorize.finish")
	defer span.End()

	l := slogx.FromContext(ctx)

	req, err := s.Store.AuthzRequests().TakeAuthzRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, oauth2.ErrInvalidRequest.WithDescription("unknown or expired authorization id")
		}
		return nil, err
	}

	if req.Decision != domain.DecisionAllow {
		return s.failRedirect(&req, oauth2.ErrAccessDenied)
	}

	members, err := s.Responses.Resolve(req.ResponseType)
	if err != nil {
		return s.failRedirect(&req, oauth2.AsError(err))
	}

	// Re-run preconditions; nothing may be minted when any member fails.
	for _, m := range members {
		if err := m.Validate(&req); err != nil {
			return s.failRedirect(&req, oauth2.AsError(err))
		}
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, m := range members {
			if err := m.Issue(ctx, tx, &req); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.Error("authorization processing failed", "err", err, "client_id", req.ClientID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "processing failed")
		return s.failRedirect(&req, oauth2.AsError(err))
	}

	if req.State != "" {
		req.SetResponseParam("state", req.State)
	}

	out, err := oauth2.EncodeResponse(req.ResponseMode, req.RedirectURI, req.ResponseParams)
	if err != nil {
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return &FlowResult{RequestID: req.ID, Step: StepDone, Output: out}, nil
}

// failRedirect delivers a protocol error to the client through the chosen
// response mode. Only callable once the redirect URI is validated.
func (s *AuthorizeService) failRedirect(req *domain.AuthorizationRequest, oe *oauth2.Error) (*FlowResult, error) {
	mode := req.ResponseMode
	if mode == "" {
		mode = oauth2.ResponseModeQuery
	}
	out, err := oauth2.EncodeResponse(mode, req.RedirectURI, oe.Params(req.State))
	if err != nil {
		return nil, oe
	}
	return &FlowResult{RequestID: req.ID, Step: StepDone, Output: out}, nil
}

func flattenQuery(query url.Values) map[string]string {
	m := make(map[string]string, len(query))
	for k := range query {
		m[k] = query.Get(k)
	}
	return m
}
