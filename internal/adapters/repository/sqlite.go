package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteStore keeps the name history in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLite opens (and if needed creates) the database at dsn. ":memory:"
// gives a private in-memory database.
func NewSQLite(ctx context.Context, dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer at a time; a single connection also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := migrateNameKey(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating name key: %w", err)
	}

	s := &SQLiteStore{db: db, opts: newOptions("sqlite_store", opts)}
	s.opts.logger.Debug(ctx, "name store opened", logger.String("driver", "sqlite"), logger.String("dsn", dsn))
	return s, nil
}

func (s *SQLiteStore) Record(ctx context.Context, id, name string) error {
	if err := validate(id, name); err != nil {
		return err
	}
	defer observe("record", time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ubi_user (id, name, name_key, ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id, name) DO NOTHING
	`, id, name, nameKey(name), s.opts.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("recording %s as %q: %w", id, name, err)
	}
	return nil
}

func (s *SQLiteStore) IDsByName(ctx context.Context, name string) ([]string, error) {
	defer observe("ids_by_name", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM ubi_user
		WHERE name_key = ?
		GROUP BY id
		ORDER BY MIN(ts), id
	`, nameKey(name))
	if err != nil {
		return nil, fmt.Errorf("ids by name %q: %w", name, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) NamesByID(ctx context.Context, id string) ([]string, error) {
	h, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return names(h), nil
}

func (s *SQLiteStore) History(ctx context.Context, id string) ([]model.NameRecord, error) {
	defer observe("history", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, ts FROM ubi_user
		WHERE id = ?
		ORDER BY ts, name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", id, err)
	}
	defer rows.Close()

	out := []model.NameRecord{}
	for rows.Next() {
		var (
			r  model.NameRecord
			ts int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &ts); err != nil {
			return nil, err
		}
		r.RecordedAt = time.UnixMilli(ts).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// migrateNameKey adds name_key to databases created before it existed and
// fills it for old rows. SQLite's own lower() only folds ASCII, so the key
// is computed here.
func migrateNameKey(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('ubi_user') WHERE name = 'name_key'`).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.ExecContext(ctx,
			`ALTER TABLE ubi_user ADD COLUMN name_key TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT name FROM ubi_user WHERE name_key = ''`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		stale = append(stale, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, name := range stale {
		if _, err := db.ExecContext(ctx,
			`UPDATE ubi_user SET name_key = ? WHERE name = ?`, nameKey(name), name); err != nil {
			return err
		}
	}

	_, err = db.ExecContext(ctx, `
		DROP INDEX IF EXISTS idx_ubi_user_name;
		CREATE INDEX IF NOT EXISTS idx_ubi_user_name_key ON ubi_user (name_key);
	`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
