// Package store persists validated column mappings and cached row labels.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dpgf-extract/internal/config"
	"github.com/sells-group/dpgf-extract/internal/model"
)

// ErrNotFound is returned when a named entry does not exist.
var ErrNotFound = eris.New("store: not found")

// Mapping is a persisted column mapping keyed by header signature.
type Mapping struct {
	Signature string           `json:"signature" yaml:"signature"`
	Roles     model.RoleMap    `json:"roles" yaml:"roles"`
	Source    model.Confidence `json:"source" yaml:"source"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}

// Store defines the persistence interface for learned mappings and the
// row-label cache. Implementations serialize writers; readers may proceed
// concurrently.
type Store interface {
	// Mappings

	// GetMapping returns the mapping for sig, or nil when none exists.
	GetMapping(ctx context.Context, sig string) (*Mapping, error)
	// PutMapping inserts roles under sig unless an entry already exists.
	// It returns the stored entry and whether this call created it.
	PutMapping(ctx context.Context, sig string, roles model.RoleMap, source model.Confidence) (*Mapping, bool, error)
	ListMappings(ctx context.Context) ([]Mapping, error)
	DeleteMapping(ctx context.Context, sig string) error

	// Label cache
	GetLabels(ctx context.Context, key string) ([]byte, error)
	PutLabels(ctx context.Context, key string, data []byte) error

	// Lifecycle
	Flush(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver and runs its migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "memory", "":
		s = NewMemory()
	case "file":
		s, err = NewFile(cfg.Path)
	case "sqlite":
		s, err = NewSQLite(cfg.Path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func validateRoles(sig string, roles model.RoleMap) error {
	if sig == "" {
		return eris.New("store: empty signature")
	}
	if err := roles.Validate(0); err != nil {
		return eris.Wrapf(err, "store: invalid mapping %s", sig)
	}
	return nil
}
