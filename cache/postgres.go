package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgConn is the subset of *pgx.Conn used by the Postgres store.
type PgConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Postgres is a Store backed by a PostgreSQL table.
type Postgres struct {
	conn PgConn
}

// OpenPostgres connects to the database at dsn and prepares the cache
// table.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	store, err := NewPostgres(ctx, conn)
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return store, nil
}

// NewPostgres returns a store using an existing connection. It creates the
// cache table if it does not exist.
func NewPostgres(ctx context.Context, conn PgConn) (*Postgres, error) {
	_, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS bytecode_cache (
		key TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return nil, fmt.Errorf("creating cache table: %w", err)
	}
	return &Postgres{conn: conn}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := p.conn.QueryRow(ctx, "SELECT data FROM bytecode_cache WHERE key = $1", key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return data, true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, data []byte) error {
	_, err := p.conn.Exec(ctx,
		`INSERT INTO bytecode_cache (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, created_at = now()`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.conn.Close(context.Background())
}
