package parser

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

const lookupKeyQuery = `SELECT id, owner, name, created_at FROM api_keys WHERE key_hash = $1`

// SQLKeys resolves keys from an `api_keys` table indexed by HashKey.
// The placeholder syntax targets Postgres (github.com/lib/pq).
type SQLKeys struct {
	db *sql.DB
}

func NewSQLKeys(db *sql.DB) (*SQLKeys, error) {
	if db == nil {
		return nil, errors.New("sql key parser requires a database")
	}
	return &SQLKeys{db: db}, nil
}

func (s *SQLKeys) Parse(ctx context.Context, key string) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var cred Credential
	err := s.db.QueryRowContext(ctx, lookupKeyQuery, HashKey(key)).
		Scan(&cred.ID, &cred.Owner, &cred.Name, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownKey
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup api key")
	}
	return cred, nil
}
