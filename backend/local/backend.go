// Package local implements the passthrough backend that maps virtual paths
// onto a subtree of the real operating-system filesystem.
package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

type LocalBackend struct {
	root string
}

// NewLocalBackend creates a backend rooted at the given OS directory.
// The directory must exist when the backend is opened.
func NewLocalBackend(root string) (*LocalBackend, error) {
	return &LocalBackend{
		root: filepath.Clean(root),
	}, nil
}

// Name returns the identifier name defined for this backend.
func (*LocalBackend) Name() string {
	return "local"
}

// Open is part of the lifecycle behaviour and gets called when the backend is mounted.
func (lb *LocalBackend) Open(ctx context.Context) error {
	info, err := os.Stat(lb.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data.ErrMountFailed
		}
		if errors.Is(err, fs.ErrPermission) {
			return data.ErrPermission
		}

		return data.ErrMountFailed
	}

	if !info.IsDir() {
		return data.ErrNotDirectory
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when the backend is unmounted.
func (lb *LocalBackend) Close(ctx context.Context) error {
	// The underlying filesystem persists independently.
	return nil
}

// Capabilities returns the capabilities supported by this backend.
func (lb *LocalBackend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
			backend.CapabilityPersistent,
		},
		// Practical limit for typical use; local filesystems vary by OS.
		MaxObjectSize: 10737418240, // 10 GB
	}
}

// resolve joins the backend root with a backend-relative virtual path.
func (lb *LocalBackend) resolve(path data.VirtualPath) string {
	rel := strings.TrimSuffix(path.String(), "/")
	return filepath.Join(lb.root, filepath.FromSlash(rel))
}

func mapOSError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return data.ErrNotExist
	case errors.Is(err, fs.ErrExist):
		return data.ErrExist
	case errors.Is(err, fs.ErrPermission):
		return data.ErrPermission
	default:
		return err
	}
}
