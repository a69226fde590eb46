package sqlite

import (
	"context"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

type initialAccessTokensRepo struct {
	q querier
}

func (r *initialAccessTokensRepo) CreateInitialAccessToken(ctx context.Context, t domain.InitialAccessToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO initial_access_tokens (id, token_hash, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, t.ExpiresAt, t.Revoked, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *initialAccessTokensRepo) GetInitialAccessTokenByHash(ctx context.Context, hash string) (domain.InitialAccessToken, error) {
	var t domain.InitialAccessToken
	err := r.q.QueryRowContext(ctx, `
		SELECT id, token_hash, expires_at, revoked, created_at
		FROM initial_access_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err != nil {
		return domain.InitialAccessToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *initialAccessTokensRepo) RevokeInitialAccessToken(ctx context.Context, id string) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE initial_access_tokens SET revoked = 1 WHERE id = ?`, id))
}

func (r *initialAccessTokensRepo) DeleteExpiredInitialAccessTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM initial_access_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
