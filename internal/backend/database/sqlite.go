package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" opens its own empty database
	if strings.Contains(connectionString, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_superuser INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		depth INTEGER NOT NULL,
		numchild INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		draft_title TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL,
		content_type TEXT NOT NULL,
		live INTEGER NOT NULL DEFAULT 1,
		has_unpublished_changes INTEGER NOT NULL DEFAULT 0,
		latest_revision_created_at INTEGER,
		owner_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		locale TEXT NOT NULL DEFAULT 'en',
		translation_key TEXT NOT NULL,
		rank TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS pages_translation_key ON pages (translation_key)`,
	`CREATE TABLE IF NOT EXISTS page_permissions (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		permission_type TEXT NOT NULL,
		PRIMARY KEY (user_id, page_id, permission_type)
	)`,
	`CREATE TABLE IF NOT EXISTS form_fields (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		label TEXT NOT NULL,
		clean_name TEXT NOT NULL,
		field_type TEXT NOT NULL,
		required INTEGER NOT NULL DEFAULT 1,
		choices TEXT NOT NULL DEFAULT '',
		default_value TEXT NOT NULL DEFAULT '',
		help_text TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS form_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		form_data TEXT NOT NULL,
		submit_time INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		file BLOB NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		file_size INTEGER NOT NULL,
		file_hash TEXT NOT NULL DEFAULT '',
		focal_point_x INTEGER,
		focal_point_y INTEGER,
		focal_point_width INTEGER,
		focal_point_height INTEGER,
		uploaded_by_user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS images_file_hash ON images (file_hash)`,
	`CREATE TABLE IF NOT EXISTS renditions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		filter_spec TEXT NOT NULL,
		focal_point_key TEXT NOT NULL DEFAULT '',
		file BLOB NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		format TEXT NOT NULL,
		UNIQUE (image_id, filter_spec, focal_point_key)
	)`,
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return nil, err
		}
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteDatabase) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// prefixed qualifies every column of a comma separated list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
