// Package readonly decorates a backend so every mutating call is rejected
// with ErrReadOnly while reads pass through untouched.
package readonly

import (
	"context"
	"fmt"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

type readonlyBackend struct {
	inner backend.Backend
}

// Wrap places b behind the mutation-rejecting decorator. Wrapping an
// already wrapped backend returns it unchanged.
func Wrap(b backend.Backend) backend.Backend {
	if _, ok := b.(*readonlyBackend); ok {
		return b
	}

	return &readonlyBackend{inner: b}
}

// Unwrap returns the decorated backend.
func Unwrap(b backend.Backend) backend.Backend {
	if rb, ok := b.(*readonlyBackend); ok {
		return rb.inner
	}

	return b
}

func (rb *readonlyBackend) Name() string {
	return rb.inner.Name()
}

func (rb *readonlyBackend) Open(ctx context.Context) error {
	return rb.inner.Open(ctx)
}

func (rb *readonlyBackend) Close(ctx context.Context) error {
	return rb.inner.Close(ctx)
}

func (rb *readonlyBackend) Capabilities() *backend.Capabilities {
	inner := rb.inner.Capabilities()

	caps := &backend.Capabilities{
		Capabilities:  append([]backend.Capability{}, inner.Capabilities...),
		MaxObjectSize: inner.MaxObjectSize,
	}
	if !caps.Contains(backend.CapabilityReadOnly) {
		caps.Capabilities = append(caps.Capabilities, backend.CapabilityReadOnly)
	}

	return caps
}

func (rb *readonlyBackend) Create(ctx context.Context, path data.VirtualPath) error {
	return fmt.Errorf("%w: create %s", data.ErrReadOnly, path.String())
}

func (rb *readonlyBackend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	return fmt.Errorf("%w: delete %s", data.ErrReadOnly, path.String())
}

func (rb *readonlyBackend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	return rb.inner.Enumerate(ctx, path, pattern, scope, targets)
}

func (rb *readonlyBackend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	return rb.inner.Exists(ctx, path)
}

func (rb *readonlyBackend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if access.CanWrite() || access.HasCreate() || access.HasTrunc() || access.HasAppend() {
		return nil, fmt.Errorf("%w: open %s for writing", data.ErrReadOnly, path.String())
	}

	return rb.inner.OpenStream(ctx, path, access, share)
}
