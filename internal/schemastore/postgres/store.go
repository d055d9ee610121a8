// Package postgres is the Postgres-backed field-classification store:
// field_sets rows (name, kind) accessed through database/sql using
// github.com/jackc/pgx/v5's stdlib driver, mirroring how the teacher
// codebase uses pgx as its primary driver while keeping the store testable
// against github.com/DATA-DOG/go-sqlmock's faked database/sql connection.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sievelang/sieve/internal/compiler/schema"
)

// Store loads and persists field classifications from a `field_sets` table:
//
//	CREATE TABLE field_sets (
//	  name  text PRIMARY KEY,
//	  kind  text NOT NULL,     -- bool, date, float, int, ip, literal, ngram, custom
//	  is_default boolean NOT NULL DEFAULT false
//	);
type Store struct {
	db *sql.DB
}

// Open dials dsn through pgx's stdlib adapter and returns a Store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB, letting tests substitute a
// go-sqlmock-backed connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reads every row of field_sets into a schema.Config.
func (s *Store) Load(ctx context.Context) (*schema.Config, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, kind, is_default FROM field_sets`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query field_sets: %w", err)
	}
	defer rows.Close()

	cfg := schema.New("")
	for rows.Next() {
		var name, kind string
		var isDefault bool
		if err := rows.Scan(&name, &kind, &isDefault); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan field_sets row: %w", err)
		}

		if err := assignField(cfg, name, kind); err != nil {
			return nil, err
		}
		if isDefault {
			cfg.DefaultField = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: error iterating field_sets: %w", err)
	}

	return cfg, nil
}

// AddField inserts or updates a single field's classification.
func (s *Store) AddField(ctx context.Context, name string, kind schema.Kind) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_sets (name, kind) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind`,
		name, kind.String())
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert field %q: %w", name, err)
	}
	return nil
}

// RemoveField deletes a field's classification row.
func (s *Store) RemoveField(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM field_sets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete field %q: %w", name, err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB so callers can configure pool limits
// (server.DefaultDatabaseConfig) against the same connection this Store
// queries, instead of opening a second one.
func (s *Store) DB() *sql.DB {
	return s.db
}

func assignField(cfg *schema.Config, name, kind string) error {
	switch kind {
	case "bool":
		cfg.BoolFields[name] = struct{}{}
	case "date":
		cfg.DateFields[name] = struct{}{}
	case "float":
		cfg.FloatFields[name] = struct{}{}
	case "int":
		cfg.IntFields[name] = struct{}{}
	case "ip":
		cfg.IPFields[name] = struct{}{}
	case "literal":
		cfg.LiteralFields[name] = struct{}{}
	case "ngram":
		cfg.NgramFields[name] = struct{}{}
	case "custom":
		cfg.CustomFields[name] = struct{}{}
	default:
		return fmt.Errorf("postgres: unknown field kind %q for field %q", kind, name)
	}
	return nil
}
