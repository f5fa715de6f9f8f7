package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// Create creates a file or directory. Directory creation implicitly
// materializes missing intermediate directories; files require an existing
// parent directory.
func (pb *PostgresBackend) Create(ctx context.Context, path data.VirtualPath) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if path.IsRoot() {
		return data.ErrExist
	}

	if pb.existsAnyShapeLocked(path) {
		return data.ErrExist
	}

	if path.IsDirectory() {
		return pb.createDirLocked(ctx, path)
	}

	parent := parentDir(path)
	if !parent.IsRoot() && !pb.existsLocked(parent) {
		return data.ErrNotExist
	}

	return pb.insertLocked(ctx, path, nil)
}

// Delete removes the entry at path.
func (pb *PostgresBackend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if !path.IsDirectory() {
		if !pb.existsLocked(path) {
			if pb.existsLocked(path.AsDirectory()) {
				return data.ErrIsDirectory
			}
			return data.ErrNotExist
		}

		return pb.removeLocked(ctx, path.String())
	}

	if !path.IsRoot() && !pb.existsLocked(path) {
		return data.ErrNotExist
	}

	children := pb.childKeysLocked(path.String())
	if len(children) > 0 && !recursive {
		return data.ErrDirectoryNotEmpty
	}

	for _, key := range children {
		if err := pb.removeLocked(ctx, key); err != nil {
			return err
		}
	}
	if !path.IsRoot() {
		return pb.removeLocked(ctx, path.String())
	}

	return nil
}

// Exists reports whether an entry of the path's shape exists.
func (pb *PostgresBackend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	if path.IsRoot() {
		return true, nil
	}

	return pb.existsLocked(path), nil
}

// Enumerate yields matching entries below the directory path in key order,
// served from the in-memory key index.
func (pb *PostgresBackend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	match, err := backend.CompilePattern(pattern)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	if !path.IsDirectory() {
		return data.FailedEnumeration(data.ErrNotDirectory)
	}

	prefix := path.String()

	return func(yield func(data.VirtualPath, error) bool) {
		for _, key := range pb.snapshotKeys(prefix) {
			rest := key[len(prefix):]
			if rest == "" {
				continue
			}

			isDir := strings.HasSuffix(rest, "/")
			if scope == data.ScopeTopLevel && !topLevel(rest, isDir) {
				continue
			}

			wanted := isDir && targets.WantsDirectories() || !isDir && targets.WantsFiles()
			if !wanted {
				continue
			}

			entry, ok := data.TryParse(key)
			if !ok {
				continue
			}

			if !match(entry.FileName()) {
				continue
			}

			if !yield(entry, nil) {
				return
			}
		}
	}
}

// OpenStream opens a buffered stream over the object's content; writes are
// persisted back in one transaction when the stream closes.
func (pb *PostgresBackend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, data.ErrIsDirectory
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.existsLocked(path.AsDirectory()) {
		return nil, data.ErrIsDirectory
	}

	exists := pb.existsLocked(path)
	switch {
	case !exists:
		if !access.HasCreate() {
			return nil, data.ErrNotExist
		}

		parent := parentDir(path)
		if !parent.IsRoot() && !pb.existsLocked(parent) {
			return nil, data.ErrNotExist
		}

		if err := pb.insertLocked(ctx, path, nil); err != nil {
			return nil, err
		}

	case access.HasExcl():
		return nil, data.ErrExist
	}

	var content []byte
	if !access.HasTrunc() {
		var err error
		content, err = pb.readContentLocked(ctx, path.String())
		if err != nil {
			return nil, err
		}
	}

	flush := func(ctx context.Context, final []byte) error {
		pb.mu.Lock()
		defer pb.mu.Unlock()

		return pb.writeContentLocked(ctx, path.String(), final)
	}

	return backend.NewBufferStream(ctx, content, access, flush), nil
}

func (pb *PostgresBackend) existsLocked(path data.VirtualPath) bool {
	_, exists := pb.keys.Get(path.String())
	return exists
}

func (pb *PostgresBackend) existsAnyShapeLocked(path data.VirtualPath) bool {
	if pb.existsLocked(path.AsDirectory()) {
		return true
	}

	if file, err := path.AsFile(); err == nil {
		return pb.existsLocked(file)
	}

	return false
}

// insertLocked stores a new object row and registers its key.
func (pb *PostgresBackend) insertLocked(ctx context.Context, path data.VirtualPath, content []byte) error {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Unix()

	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO virtfs_objects (id, key, is_dir, size, etag, modify_time, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, path.String(), path.IsDirectory(), len(content), contentETag(content), now, now)
	if err != nil {
		return err
	}

	if len(content) > 0 {
		if _, err := tx.Exec(ctx,
			"INSERT INTO virtfs_content (id, content) VALUES ($1, $2)", id, content); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	pb.keys.Set(path.String(), id)
	return nil
}

func (pb *PostgresBackend) removeLocked(ctx context.Context, key string) error {
	id, exists := pb.keys.Get(key)
	if !exists {
		return data.ErrNotExist
	}

	if _, err := pb.pool.Exec(ctx,
		"DELETE FROM virtfs_objects WHERE id = $1", id); err != nil {
		return err
	}

	pb.keys.Delete(key)
	return nil
}

func (pb *PostgresBackend) readContentLocked(ctx context.Context, key string) ([]byte, error) {
	id, exists := pb.keys.Get(key)
	if !exists {
		return nil, data.ErrNotExist
	}

	var content []byte
	err := pb.pool.QueryRow(ctx,
		"SELECT content FROM virtfs_content WHERE id = $1", id).Scan(&content)

	if errors.Is(err, pgx.ErrNoRows) {
		// No content stored yet (empty file)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (pb *PostgresBackend) writeContentLocked(ctx context.Context, key string, content []byte) error {
	id, exists := pb.keys.Get(key)
	if !exists {
		return data.ErrNotExist
	}

	now := time.Now().Unix()

	tx, err := pb.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO virtfs_content (id, content) VALUES ($1, $2)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content
	`, id, content)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE virtfs_objects SET size = $1, etag = $2, modify_time = $3 WHERE id = $4
	`, len(content), contentETag(content), now, id)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// createDirLocked materializes path and any missing ancestor directories.
func (pb *PostgresBackend) createDirLocked(ctx context.Context, path data.VirtualPath) error {
	current := data.RootPath
	for _, segment := range path.Segments() {
		next, err := current.Append(segment + "/")
		if err != nil {
			return err
		}

		if !pb.existsLocked(next) {
			if file, err := next.AsFile(); err == nil && pb.existsLocked(file) {
				return data.ErrNotDirectory
			}

			if err := pb.insertLocked(ctx, next, nil); err != nil {
				return err
			}
		}

		current = next
	}

	return nil
}

func (pb *PostgresBackend) childKeysLocked(prefix string) []string {
	var keys []string
	pb.keys.Ascend(prefix, func(key, _ string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		if key != prefix {
			keys = append(keys, key)
		}
		return true
	})

	return keys
}

func (pb *PostgresBackend) snapshotKeys(prefix string) []string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	var keys []string
	pb.keys.Ascend(prefix, func(key, _ string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})

	return keys
}

func topLevel(rest string, isDir bool) bool {
	if isDir {
		return strings.Count(rest, "/") == 1
	}

	return !strings.Contains(rest, "/")
}

func parentDir(path data.VirtualPath) data.VirtualPath {
	segments := path.Segments()
	if len(segments) < 2 {
		return data.RootPath
	}

	parent, err := data.FromSegments(segments[:len(segments)-1], true)
	if err != nil {
		return data.RootPath
	}

	return parent
}

func contentETag(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
