package backend

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nwerse/virtfs/data"
)

// Stream is the byte stream abstraction returned by OpenStream.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// FlushFunc persists the final content of a buffer stream when it closes.
type FlushFunc func(ctx context.Context, content []byte) error

// bufferStream is a Stream over an in-memory copy of an object. Backends
// without native streaming (object stores, KV stores, databases) load the
// current content, hand it to NewBufferStream and persist the result through
// flush on Close. flush runs only when the stream was written to.
type bufferStream struct {
	mu  sync.Mutex
	ctx context.Context

	access data.AccessMode
	buf    []byte
	off    int64
	dirty  bool
	closed bool
	flush  FlushFunc
}

// NewBufferStream wraps content in a Stream honoring the given access mode.
// With AccessModeAppend the initial offset sits at the end of content.
func NewBufferStream(ctx context.Context, content []byte, access data.AccessMode, flush FlushFunc) Stream {
	bs := &bufferStream{
		ctx:    ctx,
		access: access,
		buf:    content,
		flush:  flush,
	}

	if access.HasAppend() {
		bs.off = int64(len(content))
	}

	return bs
}

func (bs *bufferStream) Read(p []byte) (int, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.closed {
		return 0, data.ErrClosed
	}

	if !bs.access.CanRead() {
		return 0, data.ErrPermission
	}

	if bs.off >= int64(len(bs.buf)) {
		return 0, io.EOF
	}

	n := copy(p, bs.buf[bs.off:])
	bs.off += int64(n)

	return n, nil
}

func (bs *bufferStream) Write(p []byte) (int, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.closed {
		return 0, data.ErrClosed
	}

	if !bs.access.CanWrite() {
		return 0, data.ErrPermission
	}

	end := bs.off + int64(len(p))
	if end > int64(len(bs.buf)) {
		grown := make([]byte, end)
		copy(grown, bs.buf)
		bs.buf = grown
	}

	n := copy(bs.buf[bs.off:], p)
	bs.off += int64(n)
	bs.dirty = true

	return n, nil
}

func (bs *bufferStream) Seek(offset int64, whence int) (int64, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.closed {
		return 0, data.ErrClosed
	}

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = bs.off + offset
	case io.SeekEnd:
		next = int64(len(bs.buf)) + offset
	default:
		return 0, fmt.Errorf("%w: invalid whence %d", data.ErrInvalidArgument, whence)
	}

	if next < 0 {
		return 0, fmt.Errorf("%w: negative seek offset", data.ErrInvalidArgument)
	}

	bs.off = next
	return next, nil
}

func (bs *bufferStream) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.closed {
		return data.ErrClosed
	}
	bs.closed = true

	if bs.dirty && bs.flush != nil {
		return bs.flush(bs.ctx, bs.buf)
	}

	return nil
}
