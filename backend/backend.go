package backend

import (
	"context"

	"github.com/nwerse/virtfs/data"
)

// Backend is the storage contract every mounted leaf provides. Paths handed
// to a backend are always relative to its own root (the facade strips the
// mount prefix before delegating). Backends report failures through the
// sentinel errors in the data package; the facade propagates them verbatim.
type Backend interface {
	// Name returns the identifier name defined for this backend.
	Name() string

	// Open is part of the lifecycle behaviour and gets called when the
	// backend is mounted.
	Open(ctx context.Context) error

	// Close is part of the lifecycle behaviour and gets called when the
	// backend is unmounted.
	Close(ctx context.Context) error

	// Capabilities returns the capabilities supported by this backend.
	Capabilities() *Capabilities

	// Create creates a file or directory depending on the shape of path.
	// Directory creation implicitly creates missing intermediate
	// directories where the underlying store allows it.
	Create(ctx context.Context, path data.VirtualPath) error

	// Delete removes the entry at path. Deleting a non-empty directory
	// fails with ErrDirectoryNotEmpty unless recursive is set.
	Delete(ctx context.Context, path data.VirtualPath, recursive bool) error

	// Enumerate lazily yields the entries below the directory path whose
	// final segment matches pattern (glob syntax, empty matches all).
	// Yielded paths are relative to the backend root.
	Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration

	// Exists reports whether an entry exists at path.
	Exists(ctx context.Context, path data.VirtualPath) (bool, error)

	// OpenStream opens a byte stream on the file at path. Fails with
	// ErrIsDirectory when path denotes a directory.
	OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (Stream, error)
}
