package sqlite

import (
	"context"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

type resourceServersRepo struct {
	q querier
}

func (r *resourceServersRepo) GetResourceServerByID(ctx context.Context, id string) (domain.ResourceServer, error) {
	var rs domain.ResourceServer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, secret_hash, created_at
		FROM resource_servers WHERE id = ?`, id,
	).Scan(&rs.ID, &rs.Name, &rs.SecretHash, &rs.CreatedAt)
	if err != nil {
		return domain.ResourceServer{}, mapNotFound(err)
	}
	return rs, nil
}

func (r *resourceServersRepo) CreateResourceServer(ctx context.Context, rs domain.ResourceServer) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO resource_servers (id, name, secret_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		rs.ID, rs.Name, rs.SecretHash, rs.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}
