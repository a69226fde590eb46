package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tanukisoft/torii/internal/idp/store"

	_ "modernc.org/sqlite"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every repo works identically inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single pooled connection keeps :memory: databases coherent and
	// sidesteps SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	// Execute the function
	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	// Commit on success
	return tx.Commit()
}

func (s *Store) Users() store.Users                             { return &usersRepo{q: s.db} }
func (s *Store) Clients() store.Clients                         { return &clientsRepo{q: s.db} }
func (s *Store) Consents() store.Consents                       { return &consentsRepo{q: s.db} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes   { return &authorizationCodesRepo{q: s.db} }
func (s *Store) AccessTokens() store.AccessTokens               { return &accessTokensRepo{q: s.db} }
func (s *Store) RefreshTokens() store.RefreshTokens             { return &refreshTokensRepo{q: s.db} }
func (s *Store) InitialAccessTokens() store.InitialAccessTokens { return &initialAccessTokensRepo{q: s.db} }
func (s *Store) ResourceServers() store.ResourceServers         { return &resourceServersRepo{q: s.db} }
func (s *Store) AuthzRequests() store.AuthzRequests             { return &authzRequestsRepo{q: s.db} }
func (s *Store) Assertions() store.Assertions                   { return &assertionsRepo{q: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// requireRow turns a zero-rows-affected result into ErrNotFound.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures as plain errors with
	// the sqlite message text; there is no typed error to unwrap.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func joinList(items []string) string {
	return strings.Join(items, " ")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMap(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
