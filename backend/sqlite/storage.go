package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// Create creates a file or directory. Directory creation implicitly
// materializes missing intermediate directories; files require an existing
// parent directory.
func (sb *SQLiteBackend) Create(ctx context.Context, path data.VirtualPath) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if path.IsRoot() {
		return data.ErrExist
	}

	if sb.existsAnyShapeLocked(path) {
		return data.ErrExist
	}

	if path.IsDirectory() {
		return sb.createDirLocked(ctx, path)
	}

	parent := parentDir(path)
	if !parent.IsRoot() && !sb.existsLocked(parent) {
		return data.ErrNotExist
	}

	return sb.insertLocked(ctx, path, nil)
}

// Delete removes the entry at path.
func (sb *SQLiteBackend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if !path.IsDirectory() {
		if !sb.existsLocked(path) {
			if sb.existsLocked(path.AsDirectory()) {
				return data.ErrIsDirectory
			}
			return data.ErrNotExist
		}

		return sb.removeLocked(ctx, path.String())
	}

	if !path.IsRoot() && !sb.existsLocked(path) {
		return data.ErrNotExist
	}

	children := sb.childKeysLocked(path.String())
	if len(children) > 0 && !recursive {
		return data.ErrDirectoryNotEmpty
	}

	for _, key := range children {
		if err := sb.removeLocked(ctx, key); err != nil {
			return err
		}
	}
	if !path.IsRoot() {
		return sb.removeLocked(ctx, path.String())
	}

	return nil
}

// Exists reports whether an entry of the path's shape exists.
func (sb *SQLiteBackend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if path.IsRoot() {
		return true, nil
	}

	return sb.existsLocked(path), nil
}

// Enumerate yields matching entries below the directory path in key order,
// served from the in-memory key index.
func (sb *SQLiteBackend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	match, err := backend.CompilePattern(pattern)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	if !path.IsDirectory() {
		return data.FailedEnumeration(data.ErrNotDirectory)
	}

	prefix := path.String()

	return func(yield func(data.VirtualPath, error) bool) {
		for _, key := range sb.snapshotKeys(prefix) {
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
func (sb *SQLiteBackend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, data.ErrIsDirectory
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.existsLocked(path.AsDirectory()) {
		return nil, data.ErrIsDirectory
	}

	exists := sb.existsLocked(path)
	switch {
	case !exists:
		if !access.HasCreate() {
			return nil, data.ErrNotExist
		}

		parent := parentDir(path)
		if !parent.IsRoot() && !sb.existsLocked(parent) {
			return nil, data.ErrNotExist
		}

		if err := sb.insertLocked(ctx, path, nil); err != nil {
			return nil, err
		}

	case access.HasExcl():
		return nil, data.ErrExist
	}

	var content []byte
	if !access.HasTrunc() {
		var err error
		content, err = sb.readContentLocked(ctx, path.String())
		if err != nil {
			return nil, err
		}
	}

	flush := func(ctx context.Context, final []byte) error {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		return sb.writeContentLocked(ctx, path.String(), final)
	}

	return backend.NewBufferStream(ctx, content, access, flush), nil
}

func (sb *SQLiteBackend) existsLocked(path data.VirtualPath) bool {
	_, exists := sb.keys.Get(path.String())
	return exists
}

func (sb *SQLiteBackend) existsAnyShapeLocked(path data.VirtualPath) bool {
	if sb.existsLocked(path.AsDirectory()) {
		return true
	}

	if file, err := path.AsFile(); err == nil {
		return sb.existsLocked(file)
	}

	return false
}

// insertLocked stores a new object row and registers its key.
func (sb *SQLiteBackend) insertLocked(ctx context.Context, path data.VirtualPath, content []byte) error {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().Unix()

	isDir := 0
	if path.IsDirectory() {
		isDir = 1
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO virtfs_objects (id, key, is_dir, size, etag, modify_time, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, path.String(), isDir, len(content), contentETag(content), now, now)
	if err != nil {
		return err
	}

	if len(content) > 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO virtfs_content (id, content) VALUES (?, ?)", id, content); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	sb.keys.Set(path.String(), id)
	return nil
}

func (sb *SQLiteBackend) removeLocked(ctx context.Context, key string) error {
	id, exists := sb.keys.Get(key)
	if !exists {
		return data.ErrNotExist
	}

	if _, err := sb.db.ExecContext(ctx,
		"DELETE FROM virtfs_objects WHERE id = ?", id); err != nil {
		return err
	}

	sb.keys.Delete(key)
	return nil
}

func (sb *SQLiteBackend) readContentLocked(ctx context.Context, key string) ([]byte, error) {
	id, exists := sb.keys.Get(key)
	if !exists {
		return nil, data.ErrNotExist
	}

	var content []byte
	err := sb.db.QueryRowContext(ctx,
		"SELECT content FROM virtfs_content WHERE id = ?", id).Scan(&content)

	if err == sql.ErrNoRows {
		// No content stored yet (empty file)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (sb *SQLiteBackend) writeContentLocked(ctx context.Context, key string, content []byte) error {
	id, exists := sb.keys.Get(key)
	if !exists {
		return data.ErrNotExist
	}

	now := time.Now().Unix()

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO virtfs_content (id, content) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content
	`, id, content)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE virtfs_objects SET size = ?, etag = ?, modify_time = ? WHERE id = ?
	`, len(content), contentETag(content), now, id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// createDirLocked materializes path and any missing ancestor directories.
func (sb *SQLiteBackend) createDirLocked(ctx context.Context, path data.VirtualPath) error {
	current := data.RootPath
	for _, segment := range path.Segments() {
		next, err := current.Append(segment + "/")
		if err != nil {
			return err
		}

		if !sb.existsLocked(next) {
			if file, err := next.AsFile(); err == nil && sb.existsLocked(file) {
				return data.ErrNotDirectory
			}

			if err := sb.insertLocked(ctx, next, nil); err != nil {
				return err
			}
		}

		current = next
	}

	return nil
}

func (sb *SQLiteBackend) childKeysLocked(prefix string) []string {
	var keys []string
	sb.keys.Ascend(prefix, func(key, _ string) bool {
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

func (sb *SQLiteBackend) snapshotKeys(prefix string) []string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var keys []string
	sb.keys.Ascend(prefix, func(key, _ string) bool {
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
