package sqlite

import (
	"context"

	"github.com/tanukisoft/torii/internal/idp/domain"
)

type consentsRepo struct {
	q querier
}

func (r *consentsRepo) GetConsent(ctx context.Context, userID, clientID string) (domain.Consent, error) {
	var (
		c      domain.Consent
		scopes string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, client_id, scopes, granted_at
		FROM consents WHERE user_id = ? AND client_id = ?`,
		userID, clientID,
	).Scan(&c.UserID, &c.ClientID, &scopes, &c.GrantedAt)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}
	c.Scopes = splitList(scopes)
	return c, nil
}

func (r *consentsRepo) UpsertConsent(ctx context.Context, c domain.Consent) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO consents (user_id, client_id, scopes, granted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, client_id)
		DO UPDATE SET scopes = excluded.scopes, granted_at = excluded.granted_at`,
		c.UserID, c.ClientID, joinList(c.Scopes), c.GrantedAt,
	)
	return err
}

func (r *consentsRepo) DeleteConsent(ctx context.Context, userID, clientID string) error {
	return requireRow(r.q.ExecContext(ctx,
		`DELETE FROM consents WHERE user_id = ? AND client_id = ?`, userID, clientID))
}
