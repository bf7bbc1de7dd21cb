package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dpgf-extract/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dpgf_mappings (
	signature  TEXT PRIMARY KEY,
	roles      JSONB NOT NULL,
	source     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dpgf_label_cache (
	key       TEXT PRIMARY KEY,
	data      JSONB NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Flush is a no-op; every write is committed immediately.
func (s *PostgresStore) Flush(context.Context) error { return nil }

func (s *PostgresStore) GetMapping(ctx context.Context, sig string) (*Mapping, error) {
	m, err := scanPgMapping(s.pool.QueryRow(ctx,
		`SELECT signature, roles, source, created_at FROM dpgf_mappings WHERE signature = $1`, sig))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mapping %s", sig)
	}
	return m, nil
}

func (s *PostgresStore) PutMapping(ctx context.Context, sig string, roles model.RoleMap, source model.Confidence) (*Mapping, bool, error) {
	if err := validateRoles(sig, roles); err != nil {
		return nil, false, err
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: marshal roles")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO dpgf_mappings (signature, roles, source, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (signature) DO NOTHING`,
		sig, rolesJSON, string(source), time.Now().UTC(),
	)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: insert mapping %s", sig)
	}

	m, err := scanPgMapping(s.pool.QueryRow(ctx,
		`SELECT signature, roles, source, created_at FROM dpgf_mappings WHERE signature = $1`, sig))
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: reload mapping %s", sig)
	}
	return m, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT signature, roles, source, created_at FROM dpgf_mappings ORDER BY signature`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mappings")
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanPgMapping(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate mappings")
}

func (s *PostgresStore) DeleteMapping(ctx context.Context, sig string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dpgf_mappings WHERE signature = $1`, sig)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete mapping %s", sig)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: mapping %s", sig)
	}
	return nil
}

func (s *PostgresStore) GetLabels(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM dpgf_label_cache WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get labels")
	}
	return data, nil
}

func (s *PostgresStore) PutLabels(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dpgf_label_cache (key, data, cached_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, cached_at = now()`,
		key, data,
	)
	return eris.Wrap(err, "postgres: put labels")
}

func scanPgMapping(row scannable) (*Mapping, error) {
	var m Mapping
	var rolesJSON []byte
	var source string
	if err := row.Scan(&m.Signature, &rolesJSON, &source, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rolesJSON, &m.Roles); err != nil {
		return nil, eris.Wrap(err, "unmarshal roles")
	}
	m.Source = model.Confidence(source)
	return &m, nil
}
