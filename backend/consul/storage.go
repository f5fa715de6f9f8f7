package consul

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// Create creates a file or directory. Directories are virtual and never
// materialize as KV pairs; an empty directory therefore does not persist
// until it gains a child. Files require an existing parent directory.
func (cb *ConsulBackend) Create(ctx context.Context, path data.VirtualPath) error {
	if path.IsRoot() {
		return data.ErrExist
	}

	exists, err := cb.existsAnyShape(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		return data.ErrExist
	}

	if path.IsDirectory() {
		// Virtual directory, nothing to store.
		return nil
	}

	if err := cb.checkParent(ctx, path); err != nil {
		return err
	}

	pair := &api.KVPair{Key: cb.buildKey(path)}
	_, err = cb.kv.Put(pair, writeOptions(ctx))

	return err
}

// Delete removes the entry at path. Directory deletion removes the whole
// subtree via DeleteTree when recursive is set.
func (cb *ConsulBackend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	if !path.IsDirectory() {
		pair, _, err := cb.kv.Get(cb.buildKey(path), requestOptions(ctx))
		if err != nil {
			return err
		}
		if pair == nil {
			if dir, derr := cb.directoryExists(ctx, path.AsDirectory()); derr == nil && dir {
				return data.ErrIsDirectory
			}
			return data.ErrNotExist
		}

		_, err = cb.kv.Delete(cb.buildKey(path), writeOptions(ctx))
		return err
	}

	children, err := cb.childKeys(ctx, path)
	if err != nil {
		return err
	}

	if len(children) == 0 {
		if path.IsRoot() {
			return nil
		}
		return data.ErrNotExist
	}

	if !recursive {
		return data.ErrDirectoryNotEmpty
	}

	_, err = cb.kv.DeleteTree(cb.listPrefix(path), writeOptions(ctx))
	return err
}

// Exists reports whether an entry of the path's shape exists. A directory
// exists once at least one key lives below its prefix.
func (cb *ConsulBackend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	if path.IsRoot() {
		return true, nil
	}

	if path.IsDirectory() {
		return cb.directoryExists(ctx, path)
	}

	pair, _, err := cb.kv.Get(cb.buildKey(path), requestOptions(ctx))
	if err != nil {
		return false, err
	}

	return pair != nil, nil
}

// Enumerate lists entries below the directory path. The key listing is
// fetched when the consumer starts pulling; directories are derived from
// key prefixes since they never exist as pairs themselves.
func (cb *ConsulBackend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	match, err := backend.CompilePattern(pattern)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	if !path.IsDirectory() {
		return data.FailedEnumeration(data.ErrNotDirectory)
	}

	prefix := path.String()

	return func(yield func(data.VirtualPath, error) bool) {
		keys, err := cb.collectEntries(ctx, path, scope)
		if err != nil {
			yield(data.VirtualPath{}, err)
			return
		}

		for _, key := range keys {
			rest := key[len(prefix):]
			if rest == "" {
				continue
			}

			isDir := strings.HasSuffix(rest, "/")
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

// OpenStream opens a buffered stream over the pair's value; writes are
// stored back as one KV update when the stream closes.
func (cb *ConsulBackend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, data.ErrIsDirectory
	}

	key := cb.buildKey(path)

	pair, _, err := cb.kv.Get(key, requestOptions(ctx))
	if err != nil {
		return nil, err
	}

	switch {
	case pair == nil:
		if dir, derr := cb.directoryExists(ctx, path.AsDirectory()); derr == nil && dir {
			return nil, data.ErrIsDirectory
		}
		if !access.HasCreate() {
			return nil, data.ErrNotExist
		}
		if err := cb.checkParent(ctx, path); err != nil {
			return nil, err
		}

		pair = &api.KVPair{Key: key}
		if _, err := cb.kv.Put(pair, writeOptions(ctx)); err != nil {
			return nil, err
		}

	case access.HasExcl():
		return nil, data.ErrExist
	}

	var content []byte
	if !access.HasTrunc() {
		content = append([]byte{}, pair.Value...)
	}

	maxSize := cb.Capabilities().MaxObjectSize

	flush := func(ctx context.Context, final []byte) error {
		if maxSize > 0 && int64(len(final)) > maxSize {
			return fmt.Errorf("%w: value exceeds %d bytes", data.ErrInvalidArgument, maxSize)
		}

		_, err := cb.kv.Put(&api.KVPair{Key: key, Value: final}, writeOptions(ctx))
		return err
	}

	return backend.NewBufferStream(ctx, content, access, flush), nil
}

// listPrefix returns the Consul key prefix covering entries below dir.
func (cb *ConsulBackend) listPrefix(dir data.VirtualPath) string {
	if dir.IsRoot() {
		return cb.keyPrefix()
	}

	return cb.buildKey(dir) + "/"
}

// childKeys lists every Consul key strictly below the directory.
func (cb *ConsulBackend) childKeys(ctx context.Context, dir data.VirtualPath) ([]string, error) {
	keys, _, err := cb.kv.Keys(cb.listPrefix(dir), "", requestOptions(ctx))
	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (cb *ConsulBackend) directoryExists(ctx context.Context, dir data.VirtualPath) (bool, error) {
	if dir.IsRoot() {
		return true, nil
	}

	keys, err := cb.childKeys(ctx, dir)
	if err != nil {
		return false, err
	}

	return len(keys) > 0, nil
}

func (cb *ConsulBackend) existsAnyShape(ctx context.Context, path data.VirtualPath) (bool, error) {
	if exists, err := cb.directoryExists(ctx, path.AsDirectory()); err != nil || exists {
		return exists, err
	}

	file, err := path.AsFile()
	if err != nil {
		return false, nil
	}

	pair, _, err := cb.kv.Get(cb.buildKey(file), requestOptions(ctx))
	if err != nil {
		return false, err
	}

	return pair != nil, nil
}

// checkParent verifies the parent directory of a file. A file pair at the
// parent position blocks creation; otherwise the parent must be the root or
// a virtual directory with at least one key below it.
func (cb *ConsulBackend) checkParent(ctx context.Context, path data.VirtualPath) error {
	segments := path.Segments()
	if len(segments) < 2 {
		return nil
	}

	parent, err := data.FromSegments(segments[:len(segments)-1], true)
	if err != nil {
		return err
	}

	if file, err := parent.AsFile(); err == nil {
		pair, _, gerr := cb.kv.Get(cb.buildKey(file), requestOptions(ctx))
		if gerr != nil {
			return gerr
		}
		if pair != nil {
			return data.ErrNotDirectory
		}
	}

	exists, err := cb.directoryExists(ctx, parent)
	if err != nil {
		return err
	}
	if !exists {
		return data.ErrNotExist
	}

	return nil
}

// collectEntries fetches keys below dir and converts them into sorted
// backend-relative virtual path texts, deriving intermediate directories.
func (cb *ConsulBackend) collectEntries(ctx context.Context, dir data.VirtualPath, scope data.EnumerateScope) ([]string, error) {
	separator := ""
	if scope == data.ScopeTopLevel {
		separator = "/"
	}

	consulKeys, _, err := cb.kv.Keys(cb.listPrefix(dir), separator, requestOptions(ctx))
	if err != nil {
		return nil, err
	}

	rootPrefix := cb.keyPrefix()
	dirText := dir.String()

	seen := make(map[string]struct{})
	for _, consulKey := range consulKeys {
		rel := "/" + strings.TrimPrefix(consulKey, rootPrefix)
		if rel == dirText {
			continue
		}
		seen[rel] = struct{}{}

		if scope != data.ScopeRecursive {
			continue
		}

		// Derive the virtual directories between dir and this key.
		rest := strings.TrimSuffix(rel[len(dirText):], "/")
		parts := strings.Split(rest, "/")
		for i := 1; i < len(parts); i++ {
			seen[dirText+strings.Join(parts[:i], "/")+"/"] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}
