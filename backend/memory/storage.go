package memory

import (
	"context"
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
func (mb *MemoryBackend) Create(ctx context.Context, path data.VirtualPath) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if path.IsRoot() {
		return data.ErrExist
	}

	if mb.lookupAnyShape(path) != nil {
		return data.ErrExist
	}

	if path.IsDirectory() {
		return mb.createDirLocked(path)
	}

	parent, err := parentDir(path)
	if err != nil {
		return err
	}
	if !parent.IsRoot() && mb.lookup(parent) == nil {
		return data.ErrNotExist
	}

	mb.store(path, &object{
		id:      newObjectID(),
		modTime: time.Now(),
	})

	return nil
}

// Delete removes the entry at path.
func (mb *MemoryBackend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if !path.IsDirectory() {
		if mb.lookup(path) == nil {
			if mb.lookup(path.AsDirectory()) != nil {
				return data.ErrIsDirectory
			}
			return data.ErrNotExist
		}

		mb.remove(path)
		return nil
	}

	if !path.IsRoot() && mb.lookup(path) == nil {
		return data.ErrNotExist
	}

	children := mb.childKeysLocked(path)
	if len(children) > 0 && !recursive {
		return data.ErrDirectoryNotEmpty
	}

	for _, key := range children {
		mb.removeKey(key)
	}
	if !path.IsRoot() {
		mb.remove(path)
	}

	return nil
}

// Exists reports whether an entry of the path's shape exists.
func (mb *MemoryBackend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if path.IsRoot() {
		return true, nil
	}

	return mb.lookup(path) != nil, nil
}

// Enumerate yields matching entries below the directory path in key order.
// The ordered index is snapshotted when the consumer starts pulling; the
// sequence itself stays lazy and restartable.
func (mb *MemoryBackend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	match, err := backend.CompilePattern(pattern)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	if !path.IsDirectory() {
		return data.FailedEnumeration(data.ErrNotDirectory)
	}

	prefix := path.String()

	return func(yield func(data.VirtualPath, error) bool) {
		for _, key := range mb.snapshotKeys(prefix) {
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
// persisted back when the stream closes.
func (mb *MemoryBackend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, data.ErrIsDirectory
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.lookup(path.AsDirectory()) != nil {
		return nil, data.ErrIsDirectory
	}

	obj := mb.lookup(path)
	switch {
	case obj == nil:
		if !access.HasCreate() {
			return nil, data.ErrNotExist
		}

		parent, err := parentDir(path)
		if err != nil {
			return nil, err
		}
		if !parent.IsRoot() && mb.lookup(parent) == nil {
			return nil, data.ErrNotExist
		}

		obj = &object{
			id:      newObjectID(),
			modTime: time.Now(),
		}
		mb.store(path, obj)

	case access.HasExcl():
		return nil, data.ErrExist
	}

	var content []byte
	if !access.HasTrunc() {
		content = append([]byte{}, obj.content...)
	}

	flush := func(ctx context.Context, final []byte) error {
		mb.mu.Lock()
		defer mb.mu.Unlock()

		if stored := mb.lookup(path); stored != nil {
			stored.content = final
			stored.etag = contentETag(final)
			stored.modTime = time.Now()
		}

		return nil
	}

	return backend.NewBufferStream(ctx, content, access, flush), nil
}

// lookup returns the object stored exactly at the path's canonical key.
// Caller holds at least a read lock.
func (mb *MemoryBackend) lookup(path data.VirtualPath) *object {
	id, exists := mb.keys.Get(path.String())
	if !exists {
		return nil
	}

	return mb.objects[id]
}

func (mb *MemoryBackend) lookupAnyShape(path data.VirtualPath) *object {
	if obj := mb.lookup(path.AsDirectory()); obj != nil {
		return obj
	}

	if file, err := path.AsFile(); err == nil {
		return mb.lookup(file)
	}

	return nil
}

func (mb *MemoryBackend) store(path data.VirtualPath, obj *object) {
	obj.dir = path.IsDirectory()
	mb.keys.Set(path.String(), obj.id)
	mb.objects[obj.id] = obj
}

func (mb *MemoryBackend) remove(path data.VirtualPath) {
	mb.removeKey(path.String())
}

func (mb *MemoryBackend) removeKey(key string) {
	if id, exists := mb.keys.Get(key); exists {
		delete(mb.objects, id)
		mb.keys.Delete(key)
	}
}

// createDirLocked materializes path and any missing ancestor directories.
func (mb *MemoryBackend) createDirLocked(path data.VirtualPath) error {
	segments := path.Segments()

	current := data.RootPath
	for _, segment := range segments {
		next, err := current.Append(segment + "/")
		if err != nil {
			return err
		}

		if mb.lookup(next) == nil {
			if file, err := next.AsFile(); err == nil && mb.lookup(file) != nil {
				return data.ErrNotDirectory
			}

			mb.store(next, &object{
				id:      newObjectID(),
				modTime: time.Now(),
			})
		}

		current = next
	}

	return nil
}

// childKeysLocked returns every stored key strictly below the directory.
func (mb *MemoryBackend) childKeysLocked(dir data.VirtualPath) []string {
	prefix := dir.String()

	var keys []string
	mb.keys.Ascend(prefix, func(key, _ string) bool {
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

// snapshotKeys copies the ordered keys sharing prefix under a read lock.
func (mb *MemoryBackend) snapshotKeys(prefix string) []string {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var keys []string
	mb.keys.Ascend(prefix, func(key, _ string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})

	return keys
}

// topLevel reports whether a directory-relative rest names an immediate child.
func topLevel(rest string, isDir bool) bool {
	if isDir {
		return strings.Count(rest, "/") == 1
	}

	return !strings.Contains(rest, "/")
}

func parentDir(path data.VirtualPath) (data.VirtualPath, error) {
	segments := path.Segments()
	if len(segments) == 0 {
		return data.RootPath, nil
	}

	return data.FromSegments(segments[:len(segments)-1], true)
}

func newObjectID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func contentETag(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}
