package virtfs

import (
	"context"
	"fmt"
	"sort"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/backend/readonly"
	"github.com/nwerse/virtfs/data"
	"github.com/nwerse/virtfs/log"
	"github.com/nwerse/virtfs/mount"
)

type mountedFilesystem struct {
	log  *log.Logger
	tree *mount.Tree
}

// New creates an empty mounted filesystem.
func New(opts ...Option) (FileSystem, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := log.NewLogger("virtfs", options.LogLevel, options.LogFile, options.NoTerminalLog)
	logger.JSON = options.JSONLog

	return &mountedFilesystem{
		log:  logger,
		tree: mount.NewTree(options.Comparison),
	}, nil
}

func (fs *mountedFilesystem) Mount(ctx context.Context, path data.VirtualPath, b backend.Backend, opts ...mount.Option) error {
	if !path.IsValid() || !path.IsDirectory() {
		return fmt.Errorf("%w: mount point %q must be a directory path", data.ErrInvalidArgument, path.String())
	}

	if b == nil {
		return fmt.Errorf("%w: nil backend", data.ErrInvalidArgument)
	}

	options, err := mount.NewOptions(opts...)
	if err != nil {
		return err
	}

	if options.ReadOnly {
		b = readonly.Wrap(b)
	}

	if err := b.Open(ctx); err != nil {
		fs.log.Error("Mount: backend %s failed to open: %v", b.Name(), err)
		return fmt.Errorf("%w: %v", data.ErrMountFailed, err)
	}

	if err := fs.tree.Mount(path, b); err != nil {
		// Roll the lifecycle back; the backend never became reachable.
		if cerr := b.Close(ctx); cerr != nil {
			fs.log.Warn("Mount: backend %s failed to close after rejected mount: %v", b.Name(), cerr)
		}
		return err
	}

	fs.log.Info("Mounted backend %s at %s", b.Name(), path.String())
	return nil
}

func (fs *mountedFilesystem) Unmount(ctx context.Context, path data.VirtualPath) error {
	removed, err := fs.tree.Unmount(path)
	if err != nil {
		return err
	}

	if err := removed.Close(ctx); err != nil {
		fs.log.Warn("Unmount: backend %s failed to close: %v", removed.Name(), err)
		return err
	}

	fs.log.Info("Unmounted backend %s from %s", removed.Name(), path.String())
	return nil
}

func (fs *mountedFilesystem) Mounts() []mount.Info {
	return fs.tree.Mounts()
}

func (fs *mountedFilesystem) Shutdown(ctx context.Context) error {
	infos := fs.tree.Mounts()
	sort.Slice(infos, func(i, j int) bool {
		return len(infos[i].Path.String()) > len(infos[j].Path.String())
	})

	errs := data.Errors{}
	for _, info := range infos {
		errs.Add(fs.Unmount(ctx, info.Path))
	}

	return errs.Errors()
}

func (fs *mountedFilesystem) Create(ctx context.Context, path data.VirtualPath) error {
	res, err := fs.tree.Resolve(path)
	if err != nil {
		return err
	}

	return res.Backend.Create(ctx, res.Remainder)
}

func (fs *mountedFilesystem) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	res, err := fs.tree.Resolve(path)
	if err != nil {
		return err
	}

	return res.Backend.Delete(ctx, res.Remainder, recursive)
}

func (fs *mountedFilesystem) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	res, err := fs.tree.Resolve(path)
	if err != nil {
		return false, err
	}

	return res.Backend.Exists(ctx, res.Remainder)
}

func (fs *mountedFilesystem) Open(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, fmt.Errorf("%w: cannot open directory path %q as a stream", data.ErrInvalidArgument, path.String())
	}

	res, err := fs.tree.Resolve(path)
	if err != nil {
		return nil, err
	}

	return res.Backend.OpenStream(ctx, res.Remainder, access, share)
}

// Enumerate re-expresses the backend-relative results with the mount prefix
// restored. The wrapping stays lazy: nothing is pulled from the backend
// until the consumer pulls from the returned sequence.
func (fs *mountedFilesystem) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	if !path.IsValid() || !path.IsDirectory() {
		return data.FailedEnumeration(fmt.Errorf("%w: enumeration root %q must be a directory path", data.ErrInvalidArgument, path.String()))
	}

	res, err := fs.tree.Resolve(path)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	inner := res.Backend.Enumerate(ctx, res.Remainder, pattern, scope, targets)

	return func(yield func(data.VirtualPath, error) bool) {
		for entry, err := range inner {
			if err != nil {
				yield(data.VirtualPath{}, err)
				return
			}

			full, err := entry.AddBasePath(res.MountPath)
			if err != nil {
				yield(data.VirtualPath{}, err)
				return
			}

			if !yield(full, nil) {
				return
			}
		}
	}
}
