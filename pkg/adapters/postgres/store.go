// Package postgres stores run sessions in a PostgreSQL table as JSONB documents.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the table used when no WithTable option is given.
const DefaultTable = "langrun_sessions"

// Store implements ports.SessionStore on top of a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
	owned bool
}

type Option func(*Store)

// WithTable overrides the session table name.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// Connect opens a pool for dsn, checks it with a ping and creates the table if needed.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := NewFromPool(pool, opts...)
	s.owned = true
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewFromPool wraps an existing pool. The caller keeps ownership of the pool.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool exposes the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// Migrate creates the session table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	flow_id    TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.ident())
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the session document.
func (s *Store) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, flow_id, data, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET flow_id = EXCLUDED.flow_id, data = EXCLUDED.data, updated_at = now()`, s.ident())
	if _, err := s.pool.Exec(ctx, query, sessionID, sess.FlowID, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads one session document.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	var data []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.ident())
	if err := s.pool.QueryRow(ctx, query, sessionID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.ident())
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List returns session IDs ordered by id.
func (s *Store) List(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, s.ident())
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Close releases the pool if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}
