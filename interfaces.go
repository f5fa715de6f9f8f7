package virtfs

import (
	"context"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
	"github.com/nwerse/virtfs/mount"
)

// FileSystem is the mounted-filesystem facade. It gives callers a single
// addressing scheme over heterogeneous storage locations: every operation
// takes a VirtualPath, resolves the longest matching mounted prefix and
// forwards the call, with the remaining suffix path, to the backend found
// there. Mounting, unmounting and resolution are safe for any number of
// concurrent callers.
type FileSystem interface {
	// Mount attaches a backend at the given directory path. Fails when the
	// path is file-shaped, when the position is occupied, or when the new
	// mount would nest under or above an existing one.
	Mount(ctx context.Context, path data.VirtualPath, b backend.Backend, opts ...mount.Option) error

	// Unmount removes the backend mounted exactly at path and closes it.
	Unmount(ctx context.Context, path data.VirtualPath) error

	// Mounts returns information about all installed mount points.
	Mounts() []mount.Info

	// Shutdown unmounts all mounted backends and releases their resources.
	// Mounts are unmounted deepest path first.
	Shutdown(ctx context.Context) error

	// Create creates a file or directory depending on the shape of path.
	Create(ctx context.Context, path data.VirtualPath) error

	// Delete removes the entry at path. Deleting a non-empty directory
	// requires recursive.
	Delete(ctx context.Context, path data.VirtualPath, recursive bool) error

	// Enumerate lazily yields the entries below the directory path whose
	// name matches pattern, re-expressed with the mount prefix restored.
	Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration

	// Exists reports whether an entry exists at path.
	Exists(ctx context.Context, path data.VirtualPath) (bool, error)

	// Open opens a byte stream on the file at path.
	Open(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error)
}
