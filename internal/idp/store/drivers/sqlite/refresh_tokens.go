package sqlite

import (
	"context"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	props, err := encodeMap(t.Properties)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (
			id, user_id, client_id, token_hash, scopes,
			resource_server_id, properties,
			expires_at, revoked, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, joinList(t.Scopes),
		t.ResourceServerID, props,
		t.ExpiresAt, t.Revoked, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t      domain.RefreshToken
		scopes string
		props  string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, token_hash, scopes,
			resource_server_id, properties,
			expires_at, revoked, created_at, updated_at
		FROM refresh_tokens WHERE token_hash = ?`, hash,
	).Scan(
		&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &scopes,
		&t.ResourceServerID, &props,
		&t.ExpiresAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Scopes = splitList(scopes)
	if t.Properties, err = decodeMap(props); err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id))
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
