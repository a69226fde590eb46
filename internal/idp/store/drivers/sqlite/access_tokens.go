package sqlite

import (
	"context"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

type accessTokensRepo struct {
	q querier
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	props, err := encodeMap(t.Properties)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO access_tokens (
			id, user_id, client_id, token_hash, scopes,
			refresh_token_id, resource_server_id, properties,
			expires_at, revoked, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, joinList(t.Scopes),
		t.RefreshTokenID, t.ResourceServerID, props,
		t.ExpiresAt, t.Revoked, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *accessTokensRepo) GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error) {
	var (
		t      domain.AccessToken
		scopes string
		props  string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, token_hash, scopes,
			refresh_token_id, resource_server_id, properties,
			expires_at, revoked, created_at
		FROM access_tokens WHERE token_hash = ?`, hash,
	).Scan(
		&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &scopes,
		&t.RefreshTokenID, &t.ResourceServerID, &props,
		&t.ExpiresAt, &t.Revoked, &t.CreatedAt,
	)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.Scopes = splitList(scopes)
	if t.Properties, err = decodeMap(props); err != nil {
		return domain.AccessToken{}, err
	}
	return t, nil
}

func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, id string) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE access_tokens SET revoked = 1 WHERE id = ?`, id))
}

func (r *accessTokensRepo) RevokeAccessTokensByRefreshTokenID(ctx context.Context, refreshTokenID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE access_tokens SET revoked = 1
		WHERE refresh_token_id = ? AND refresh_token_id != ''`, refreshTokenID)
	return err
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at < ?`, time.Now().UTC())
	return err
}
