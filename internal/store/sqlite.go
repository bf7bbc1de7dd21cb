package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dpgf-extract/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: writers are serialized and the pragmas below apply to
	// every statement.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS mappings (
	signature  TEXT PRIMARY KEY,
	roles      TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS label_cache (
	key       TEXT PRIMARY KEY,
	data      TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Flush is a no-op; every write is committed immediately.
func (s *SQLiteStore) Flush(context.Context) error { return nil }

func (s *SQLiteStore) GetMapping(ctx context.Context, sig string) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT signature, roles, source, created_at FROM mappings WHERE signature = ?`, sig)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get mapping %s", sig)
	}
	return m, nil
}

func (s *SQLiteStore) PutMapping(ctx context.Context, sig string, roles model.RoleMap, source model.Confidence) (*Mapping, bool, error) {
	if err := validateRoles(sig, roles); err != nil {
		return nil, false, err
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: marshal roles")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO mappings (signature, roles, source, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(signature) DO NOTHING`,
		sig, string(rolesJSON), string(source), time.Now().UTC(),
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: insert mapping %s", sig)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: rows affected")
	}

	m, err := scanMapping(tx.QueryRowContext(ctx,
		`SELECT signature, roles, source, created_at FROM mappings WHERE signature = ?`, sig))
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: reload mapping %s", sig)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: commit")
	}
	return m, n == 1, nil
}

func (s *SQLiteStore) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT signature, roles, source, created_at FROM mappings ORDER BY signature`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mappings")
	}
	defer rows.Close() //nolint:errcheck

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate mappings")
}

func (s *SQLiteStore) DeleteMapping(ctx context.Context, sig string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE signature = ?`, sig)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete mapping %s", sig)
	}
	return checkRowsAffected(res, "mapping", sig)
}

func (s *SQLiteStore) GetLabels(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM label_cache WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get labels")
	}
	return []byte(data), nil
}

func (s *SQLiteStore) PutLabels(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO label_cache (key, data, cached_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at`,
		key, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put labels")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMapping(row scannable) (*Mapping, error) {
	var m Mapping
	var rolesJSON, source string
	if err := row.Scan(&m.Signature, &rolesJSON, &source, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rolesJSON), &m.Roles); err != nil {
		return nil, eris.Wrap(err, "unmarshal roles")
	}
	m.Source = model.Confidence(source)
	return &m, nil
}
