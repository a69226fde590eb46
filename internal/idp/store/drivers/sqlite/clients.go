package sqlite

import (
	"context"

	"github.com/tanukisoft/torii/internal/idp/domain"
	"github.com/tanukisoft/torii/internal/idp/store"
)

type clientsRepo struct {
	q querier
}

const clientColumns = `id, name, secret_hash, token_auth_method, grant_types,
	response_types, redirect_uris, request_uris, scopes, jwks, assertion_algs,
	registration_token_hash, owner_user_id, deleted, created_at, updated_at`

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.SecretHash, c.TokenAuthMethod,
		joinList(c.GrantTypes), joinList(c.ResponseTypes),
		joinList(c.RedirectURIs), joinList(c.RequestURIs), joinList(c.Scopes),
		c.JWKS, joinList(c.AssertionAlgs),
		c.RegistrationTokenHash, c.OwnerUserID, c.Deleted,
		c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *clientsRepo) UpdateClient(ctx context.Context, c domain.Client) error {
	return requireRow(r.q.ExecContext(ctx, `
		UPDATE clients SET
			name = ?, secret_hash = ?, token_auth_method = ?,
			grant_types = ?, response_types = ?, redirect_uris = ?,
			request_uris = ?, scopes = ?, jwks = ?, assertion_algs = ?,
			registration_token_hash = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`,
		c.Name, c.SecretHash, c.TokenAuthMethod,
		joinList(c.GrantTypes), joinList(c.ResponseTypes), joinList(c.RedirectURIs),
		joinList(c.RequestURIs), joinList(c.Scopes), c.JWKS, joinList(c.AssertionAlgs),
		c.RegistrationTokenHash, c.UpdatedAt,
		c.ID,
	))
}

func (r *clientsRepo) MarkClientDeleted(ctx context.Context, id string) error {
	return requireRow(r.q.ExecContext(ctx,
		`UPDATE clients SET deleted = 1 WHERE id = ? AND deleted = 0`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c             domain.Client
		grantTypes    string
		responseTypes string
		redirectURIs  string
		requestURIs   string
		scopes        string
		assertionAlgs string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.SecretHash, &c.TokenAuthMethod,
		&grantTypes, &responseTypes, &redirectURIs, &requestURIs, &scopes,
		&c.JWKS, &assertionAlgs,
		&c.RegistrationTokenHash, &c.OwnerUserID, &c.Deleted,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.GrantTypes = splitList(grantTypes)
	c.ResponseTypes = splitList(responseTypes)
	c.RedirectURIs = splitList(redirectURIs)
	c.RequestURIs = splitList(requestURIs)
	c.Scopes = splitList(scopes)
	c.AssertionAlgs = splitList(assertionAlgs)
	return c, nil
}
