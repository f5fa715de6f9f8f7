package local

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// Create creates a file or directory depending on the shape of path.
// Directories are created along with any missing intermediates; files
// require their parent directory to exist.
func (lb *LocalBackend) Create(ctx context.Context, path data.VirtualPath) error {
	full := lb.resolve(path)

	if path.IsDirectory() {
		if _, err := os.Stat(full); err == nil {
			return data.ErrExist
		}
		return mapOSError(os.MkdirAll(full, 0755))
	}

	file, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return mapOSError(err)
	}

	return file.Close()
}

// Delete removes the entry at path.
func (lb *LocalBackend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	full := lb.resolve(path)

	info, err := os.Stat(full)
	if err != nil {
		return mapOSError(err)
	}

	if info.IsDir() {
		if recursive {
			return mapOSError(os.RemoveAll(full))
		}

		entries, err := os.ReadDir(full)
		if err != nil {
			return mapOSError(err)
		}
		if len(entries) > 0 {
			return data.ErrDirectoryNotEmpty
		}
	}

	return mapOSError(os.Remove(full))
}

// Exists reports whether an entry of the path's shape exists.
func (lb *LocalBackend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	info, err := os.Stat(lb.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, mapOSError(err)
	}

	if path.IsDirectory() {
		return info.IsDir(), nil
	}

	return !info.IsDir(), nil
}

// Enumerate lazily yields matching entries below the directory path.
// Entries whose names violate the virtual path grammar are unaddressable
// through the namespace and are skipped.
func (lb *LocalBackend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	match, err := backend.CompilePattern(pattern)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	base := lb.resolve(path)

	return func(yield func(data.VirtualPath, error) bool) {
		walk := func(osPath string, d fs.DirEntry, err error) error {
			if err != nil {
				yield(data.VirtualPath{}, mapOSError(err))
				return filepath.SkipAll
			}

			if osPath == base {
				return nil
			}

			wanted := d.IsDir() && targets.WantsDirectories() || !d.IsDir() && targets.WantsFiles()
			if !wanted || !match(d.Name()) {
				return nil
			}

			rel, err := filepath.Rel(base, osPath)
			if err != nil {
				return nil
			}

			entry, ok := data.TryParse("/" + filepath.ToSlash(rel))
			if !ok {
				return nil
			}
			if d.IsDir() {
				entry = entry.AsDirectory()
			}

			full, err := entry.AddBasePath(path)
			if err != nil {
				return nil
			}

			if !yield(full, nil) {
				return filepath.SkipAll
			}

			return nil
		}

		if scope == data.ScopeRecursive {
			_ = filepath.WalkDir(base, walk)
			return
		}

		entries, err := os.ReadDir(base)
		if err != nil {
			yield(data.VirtualPath{}, mapOSError(err))
			return
		}

		for _, entry := range entries {
			if walk(filepath.Join(base, entry.Name()), entry, nil) != nil {
				return
			}
		}
	}
}

// OpenStream opens a file through the OS; *os.File is the stream.
func (lb *LocalBackend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, data.ErrIsDirectory
	}

	full := lb.resolve(path)

	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return nil, data.ErrIsDirectory
	}

	file, err := os.OpenFile(full, osFlags(access), 0644)
	if err != nil {
		return nil, mapOSError(err)
	}

	return file, nil
}

func osFlags(access data.AccessMode) int {
	var flags int
	switch {
	case access.CanRead() && access.CanWrite():
		flags = os.O_RDWR
	case access.CanWrite():
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}

	if access.HasCreate() {
		flags |= os.O_CREATE
	}
	if access.HasTrunc() {
		flags |= os.O_TRUNC
	}
	if access.HasAppend() {
		flags |= os.O_APPEND
	}
	if access.HasExcl() {
		flags |= os.O_EXCL
	}

	return flags
}
