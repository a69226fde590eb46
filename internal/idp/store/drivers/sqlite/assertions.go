package sqlite

import (
	"context"
	"time"

	"github.com/tanukisoft/torii/internal/idp/store"
)

// assertionsRepo is the jti replay guard. The PRIMARY KEY on jti makes the
// first insert win and every replay fail with a unique violation.
type assertionsRepo struct {
	q querier
}

func (r *assertionsRepo) RecordAssertion(ctx context.Context, jti, issuer string, expiresAt time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO assertion_jtis (jti, issuer, expires_at)
		VALUES (?, ?, ?)`,
		jti, issuer, expiresAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *assertionsRepo) DeleteExpiredAssertions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM assertion_jtis WHERE expires_at < ?`, time.Now().UTC())
	return err
}
