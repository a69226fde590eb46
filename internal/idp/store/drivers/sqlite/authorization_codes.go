package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

type authorizationCodesRepo struct {
	q querier
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error {
	query, err := encodeMap(code.Query)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO authorization_codes (
			id, user_id, client_id, code_hash, redirect_uri, scopes, query,
			code_challenge, code_challenge_method, with_refresh_token,
			nonce, auth_time, expires_at, revoked, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.UserID, code.ClientID, code.CodeHash, code.RedirectURI,
		joinList(code.Scopes), query,
		code.CodeChallenge, code.CodeChallengeMethod, code.WithRefreshToken,
		code.Nonce, code.AuthTime, code.ExpiresAt, code.Revoked, code.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	var (
		c      domain.AuthorizationCode
		scopes string
		query  string
		usedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, code_hash, redirect_uri, scopes, query,
			code_challenge, code_challenge_method, with_refresh_token,
			nonce, auth_time, expires_at, used_at, revoked, created_at
		FROM authorization_codes WHERE code_hash = ?`, hash,
	).Scan(
		&c.ID, &c.UserID, &c.ClientID, &c.CodeHash, &c.RedirectURI, &scopes, &query,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.WithRefreshToken,
		&c.Nonce, &c.AuthTime, &c.ExpiresAt, &usedAt, &c.Revoked, &c.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitList(scopes)
	if c.Query, err = decodeMap(query); err != nil {
		return domain.AuthorizationCode{}, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	return c, nil
}

// MarkAuthorizationCodeUsed is the single-use gate: the conditional UPDATE
// succeeds for exactly one caller, concurrent redeemers lose the race and
// get ErrAlreadyUsed.
func (r *authorizationCodesRepo) MarkAuthorizationCodeUsed(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE authorization_codes SET used_at = ?
		WHERE id = ? AND used_at IS NULL AND revoked = 0`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish "never existed" from "lost the race".
	var exists int
	err = r.q.QueryRowContext(ctx,
		`SELECT 1 FROM authorization_codes WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrAlreadyUsed
}

func (r *authorizationCodesRepo) RevokeAuthorizationCode(ctx context.Context, id string) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE authorization_codes SET revoked = 1 WHERE id = ?`, id))
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at < ?`, time.Now().UTC())
	return err
}
