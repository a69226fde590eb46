package store

import (
	"context"
	"errors"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrAlreadyUsed is returned by MarkAuthorizationCodeUsed when the code
	// was consumed (or revoked) before this call. The check-and-set is
	// atomic: exactly one concurrent caller wins.
	ErrAlreadyUsed = errors.New("store: already used")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable.
type Store interface {
	Clients() Clients
	Users() Users
	Consents() Consents
	AuthorizationCodes() AuthorizationCodes
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	InitialAccessTokens() InitialAccessTokens
	ResourceServers() ResourceServers
	AuthzRequests() AuthzRequests
	Assertions() Assertions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rollback when fn errors,
	// commit otherwise. This is the recommended way to do multi-step
	// operations that must be atomic (e.g. code redemption).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) error
	UpdateClient(ctx context.Context, c domain.Client) error

	// MarkClientDeleted soft-deletes; the id stays reserved.
	MarkClientDeleted(ctx context.Context, id string) error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error)
	CreateUser(ctx context.Context, u domain.UserAccount) error
}

type Consents interface {
	// GetConsent returns the stored consent for a (user, client) pair.
	GetConsent(ctx context.Context, userID, clientID string) (domain.Consent, error)

	// UpsertConsent records or widens a consent.
	UpsertConsent(ctx context.Context, c domain.Consent) error

	DeleteConsent(ctx context.Context, userID, clientID string) error
}

type AuthorizationCodes interface {
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// MarkAuthorizationCodeUsed consumes a code. It must be an atomic
	// check-and-set: ErrAlreadyUsed when the used (or revoked) flag was
	// already set, ErrNotFound when the id is unknown.
	MarkAuthorizationCodeUsed(ctx context.Context, id string) error

	// RevokeAuthorizationCode is idempotent; ErrNotFound when absent.
	RevokeAuthorizationCode(ctx context.Context, id string) error

	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}

type AccessTokens interface {
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error
	GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error)

	// RevokeAccessToken is idempotent; ErrNotFound when absent.
	RevokeAccessToken(ctx context.Context, id string) error

	// RevokeAccessTokensByRefreshTokenID revokes every access token a
	// refresh token has minted (cascade on refresh revocation).
	RevokeAccessTokensByRefreshTokenID(ctx context.Context, refreshTokenID string) error

	DeleteExpiredAccessTokens(ctx context.Context) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken is idempotent; ErrNotFound when absent.
	RevokeRefreshToken(ctx context.Context, id string) error

	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type InitialAccessTokens interface {
	CreateInitialAccessToken(ctx context.Context, t domain.InitialAccessToken) error
	GetInitialAccessTokenByHash(ctx context.Context, hash string) (domain.InitialAccessToken, error)
	RevokeInitialAccessToken(ctx context.Context, id string) error
	DeleteExpiredInitialAccessTokens(ctx context.Context) error
}

type ResourceServers interface {
	GetResourceServerByID(ctx context.Context, id string) (domain.ResourceServer, error)
	CreateResourceServer(ctx context.Context, rs domain.ResourceServer) error
}

// AuthzRequests is the correlation store for in-flight authorization
// requests. Entries are keyed by an opaque unguessable id and expire on
// their own after TTL.
type AuthzRequests interface {
	PutAuthzRequest(ctx context.Context, req domain.AuthorizationRequest, ttl time.Duration) error

	GetAuthzRequest(ctx context.Context, id string) (domain.AuthorizationRequest, error)

	// UpdateAuthzRequest re-stores a mutated request without touching its TTL.
	UpdateAuthzRequest(ctx context.Context, req domain.AuthorizationRequest) error

	// TakeAuthzRequest atomically removes and returns the entry. Exactly
	// one concurrent caller can succeed for a given id; everyone else gets
	// ErrNotFound.
	TakeAuthzRequest(ctx context.Context, id string) (domain.AuthorizationRequest, error)

	DeleteExpiredAuthzRequests(ctx context.Context) error
}

// Assertions is the jti replay-guard store for signed JWT assertions.
type Assertions interface {
	// RecordAssertion registers a jti with a TTL covering the assertion
	// lifetime. A duplicate jti (replay) returns ErrAlreadyExists.
	RecordAssertion(ctx context.Context, jti, issuer string, expiresAt time.Time) error

	DeleteExpiredAssertions(ctx context.Context) error
}
