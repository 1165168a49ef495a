package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS ubi_user (
		id   TEXT        NOT NULL,
		name TEXT        NOT NULL,
		ts   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (id, name)
	)`,
	`ALTER TABLE ubi_user ADD COLUMN IF NOT EXISTS name_key TEXT NOT NULL DEFAULT ''`,
	`UPDATE ubi_user SET name_key = LOWER(name) WHERE name_key = ''`,
	`DROP INDEX IF EXISTS idx_ubi_user_lower_name`,
	`CREATE INDEX IF NOT EXISTS idx_ubi_user_name_key ON ubi_user (name_key)`,
}

// PostgresStore keeps the name history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgres connects to dsn and runs the migrations.
func NewPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	for _, m := range postgresMigrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	s := &PostgresStore{pool: pool, opts: newOptions("postgres_store", opts)}
	s.opts.logger.Debug(ctx, "name store opened", logger.String("driver", "postgres"))
	return s, nil
}

func (s *PostgresStore) Record(ctx context.Context, id, name string) error {
	if err := validate(id, name); err != nil {
		return err
	}
	defer observe("record", time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ubi_user (id, name, name_key, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id, name) DO NOTHING
	`, id, name, nameKey(name), s.opts.now().UTC())
	if err != nil {
		return fmt.Errorf("recording %s as %q: %w", id, name, err)
	}
	return nil
}

func (s *PostgresStore) IDsByName(ctx context.Context, name string) ([]string, error) {
	defer observe("ids_by_name", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT id FROM ubi_user
		WHERE name_key = $1
		GROUP BY id
		ORDER BY MIN(ts), id
	`, nameKey(name))
	if err != nil {
		return nil, fmt.Errorf("ids by name %q: %w", name, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ids by name %q: %w", name, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *PostgresStore) NamesByID(ctx context.Context, id string) ([]string, error) {
	h, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return names(h), nil
}

func (s *PostgresStore) History(ctx context.Context, id string) ([]model.NameRecord, error) {
	defer observe("history", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, ts FROM ubi_user
		WHERE id = $1
		ORDER BY ts, name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", id, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.NameRecord, error) {
		var r model.NameRecord
		err := row.Scan(&r.ID, &r.Name, &r.RecordedAt)
		r.RecordedAt = r.RecordedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", id, err)
	}
	if out == nil {
		out = []model.NameRecord{}
	}
	return out, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
