// Package sqlite implements a persistent backend storing objects in a
// SQLite database. An in-memory B-tree over the object keys serves lookups
// and ordered listings; metadata and content live in two tables.
package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nwerse/virtfs/backend"
)

type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	// In-memory B-tree for fast key lookups, loaded on Open.
	keys *btree.Map[string, string]
}

// NewSQLiteBackend creates a new SQLite-backed storage backend.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	sb := &SQLiteBackend{
		db:   db,
		keys: btree.NewMap[string, string](0),
	}

	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS virtfs_objects (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		is_dir INTEGER NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		etag TEXT,
		modify_time INTEGER NOT NULL,
		create_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_virtfs_objects_key ON virtfs_objects(key);

	CREATE TABLE IF NOT EXISTS virtfs_content (
		id TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		FOREIGN KEY(id) REFERENCES virtfs_objects(id) ON DELETE CASCADE
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this backend.
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when the backend
// is mounted. Loads all keys into the in-memory B-tree.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if err := sb.db.PingContext(ctx); err != nil {
		return err
	}

	rows, err := sb.db.QueryContext(ctx, "SELECT key, id FROM virtfs_objects")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return err
		}
		sb.keys.Set(key, id)
	}

	return rows.Err()
}

// Close is part of the lifecycle behaviour and gets called when the backend is unmounted.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.keys.Clear()
	return sb.db.Close()
}

// Capabilities returns the capabilities supported by this backend.
func (sb *SQLiteBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
			backend.CapabilityPersistent,
		},
	}
}
