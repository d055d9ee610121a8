// Package localcache saves a schema to, and loads it from, a local
// github.com/mattn/go-sqlite3 database. No sieve command uses it: `sieve
// compile` reads its schema from a JSON file.
package localcache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sievelang/sieve/internal/compiler/schema"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS fields (
	name        TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	is_default  INTEGER NOT NULL DEFAULT 0
);
`

// Cache is a local, disk-backed mirror of a schema.Config.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("localcache: failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("localcache: failed to create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Save replaces the cached schema with cfg's contents.
func (c *Cache) Save(cfg *schema.Config) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("localcache: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fields`); err != nil {
		return fmt.Errorf("localcache: failed to clear fields: %w", err)
	}

	kinds := []schema.Kind{schema.Bool, schema.Date, schema.Float, schema.Int, schema.IP, schema.Literal, schema.Ngram, schema.Custom}
	for _, k := range kinds {
		for name := range cfg.FieldsOf(k) {
			isDefault := 0
			if name == cfg.DefaultField {
				isDefault = 1
			}
			if _, err := tx.Exec(`INSERT INTO fields (name, kind, is_default) VALUES (?, ?, ?)`, name, k.String(), isDefault); err != nil {
				return fmt.Errorf("localcache: failed to insert field %q: %w", name, err)
			}
		}
	}

	return tx.Commit()
}

// Load reads the cached schema back into a schema.Config.
func (c *Cache) Load() (*schema.Config, error) {
	rows, err := c.db.Query(`SELECT name, kind, is_default FROM fields`)
	if err != nil {
		return nil, fmt.Errorf("localcache: failed to query fields: %w", err)
	}
	defer rows.Close()

	cfg := schema.New("")
	for rows.Next() {
		var name, kind string
		var isDefault int
		if err := rows.Scan(&name, &kind, &isDefault); err != nil {
			return nil, fmt.Errorf("localcache: failed to scan row: %w", err)
		}
		if err := assignField(cfg, name, kind); err != nil {
			return nil, err
		}
		if isDefault == 1 {
			cfg.DefaultField = name
		}
	}
	return cfg, rows.Err()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
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
		return fmt.Errorf("localcache: unknown field kind %q for field %q", kind, name)
	}
	return nil
}
