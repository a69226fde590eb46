package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

// authzRequestsRepo is the correlation store for in-flight authorization
// requests. Payloads are JSON blobs; the id is the only query key.
type authzRequestsRepo struct {
	q querier
}

func (r *authzRequestsRepo) PutAuthzRequest(ctx context.Context, req domain.AuthorizationRequest, ttl time.Duration) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO authz_requests (id, payload, expires_at)
		VALUES (?, ?, ?)`,
		req.ID, string(payload), time.Now().UTC().Add(ttl),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *authzRequestsRepo) GetAuthzRequest(ctx context.Context, id string) (domain.AuthorizationRequest, error) {
	var (
		payload   string
		expiresAt time.Time
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM authz_requests WHERE id = ?`, id,
	).Scan(&payload, &expiresAt)
	if err != nil {
		return domain.AuthorizationRequest{}, mapNotFound(err)
	}
	if time.Now().UTC().After(expiresAt) {
		return domain.AuthorizationRequest{}, store.ErrNotFound
	}
	var req domain.AuthorizationRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return domain.AuthorizationRequest{}, err
	}
	return req, nil
}

func (r *authzRequestsRepo) UpdateAuthzRequest(ctx context.Context, req domain.AuthorizationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE authz_requests SET payload = ? WHERE id = ?`, string(payload), req.ID))
}

// TakeAuthzRequest removes and returns the entry in one atomic statement.
// DELETE ... RETURNING makes the take exclusive: a second caller sees no row.
func (r *authzRequestsRepo) TakeAuthzRequest(ctx context.Context, id string) (domain.AuthorizationRequest, error) {
	var (
		payload   string
		expiresAt time.Time
	)
	err := r.q.QueryRowContext(ctx,
		`DELETE FROM authz_requests WHERE id = ? RETURNING payload, expires_at`, id,
	).Scan(&payload, &expiresAt)
	if err != nil {
		return domain.AuthorizationRequest{}, mapNotFound(err)
	}
	if time.Now().UTC().After(expiresAt) {
		return domain.AuthorizationRequest{}, store.ErrNotFound
	}
	var req domain.AuthorizationRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return domain.AuthorizationRequest{}, err
	}
	return req, nil
}

func (r *authzRequestsRepo) DeleteExpiredAuthzRequests(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM authz_requests WHERE expires_at < ?`, time.Now().UTC())
	return err
}
