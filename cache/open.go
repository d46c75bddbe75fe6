package cache

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/jsrt/config"
)

// Open creates the store selected by cfg. It returns a nil store for the
// "none" backend.
func Open(ctx context.Context, cfg config.Cache) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendSQLite:
		return OpenSQLite(cfg.Path)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case config.BackendS3:
		return OpenS3(ctx, cfg.Region, cfg.Bucket, cfg.Prefix)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
