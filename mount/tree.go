package mount

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// Tree maps directory-shaped path prefixes to backend handles. It is a
// persistent multiway tree reachable from a single atomic root reference:
// readers resolve against whatever snapshot the root currently points to
// and never block, while writers build a replacement spine off to the side
// and publish it with a single compare-and-swap. A writer that loses the
// publish race discards its build and retries against the new root.
// Progress is guaranteed for at least one contending writer per round, but
// an individual writer under sustained contention has no fairness or
// termination bound; that is an accepted limitation of the optimistic
// scheme, not a correctness bug.
//
// No mount point may be nested under, or be an ancestor directory of,
// another mount point. Sibling subtrees with disjoint prefixes are
// unrestricted.
type Tree struct {
	root atomic.Pointer[node]
	cmp  data.PathComparison
}

// NewTree creates an empty tree using the given segment comparison
// strategy. The strategy is fixed for the lifetime of the tree.
func NewTree(cmp data.PathComparison) *Tree {
	return &Tree{cmp: cmp}
}

// Resolution is the result of mapping a path onto a mounted backend.
type Resolution struct {
	// Backend is the handle registered at the matched mount point.
	Backend backend.Backend

	// MountPath is the directory path the backend is mounted at.
	MountPath data.VirtualPath

	// Remainder is the unconsumed suffix of the resolved path, relative to
	// the mount point. The original path's file or directory shape is
	// preserved; an exact match on the mount point yields the root.
	Remainder data.VirtualPath
}

// Info describes one installed mount point.
type Info struct {
	Path      data.VirtualPath
	Backend   string
	MountedAt time.Time
}

// Mount installs b at the directory path. Fails with ErrAlreadyMounted when
// the position is occupied and with ErrMountConflict when a backend is
// already mounted at an ancestor or descendant segment path.
func (t *Tree) Mount(path data.VirtualPath, b backend.Backend) error {
	if !path.IsValid() || !path.IsDirectory() {
		return fmt.Errorf("%w: mount point %q must be a directory path", data.ErrInvalidArgument, path.String())
	}

	if b == nil {
		return fmt.Errorf("%w: nil backend", data.ErrInvalidArgument)
	}

	segments := path.Segments()
	now := time.Now()

	for {
		current := t.root.Load()

		next, err := t.insert(current, path, segments, b, now)
		if err != nil {
			return err
		}

		if t.root.CompareAndSwap(current, next) {
			return nil
		}
		// Lost the publish race; rebuild against the now-current root.
	}
}

// Unmount removes the backend mounted exactly at path and returns it so the
// caller can run its Close lifecycle. Ancestor nodes left with no children
// and no backend of their own collapse out of the tree.
func (t *Tree) Unmount(path data.VirtualPath) (backend.Backend, error) {
	if !path.IsValid() || !path.IsDirectory() {
		return nil, fmt.Errorf("%w: mount point %q must be a directory path", data.ErrInvalidArgument, path.String())
	}

	segments := path.Segments()

	for {
		current := t.root.Load()

		next, removed, err := t.remove(current, path, segments)
		if err != nil {
			return nil, err
		}

		if t.root.CompareAndSwap(current, next) {
			return removed, nil
		}
	}
}

// Resolve walks the current snapshot along the path's segments until it
// lands on a node carrying a backend. Never blocks and never observes a
// partially built tree.
func (t *Tree) Resolve(path data.VirtualPath) (*Resolution, error) {
	if !path.IsValid() {
		return nil, fmt.Errorf("%w: invalid path", data.ErrInvalidArgument)
	}

	n := t.root.Load()
	if n == nil {
		return nil, fmt.Errorf("%w: no mounts configured", data.ErrNotMounted)
	}

	segments := path.Segments()
	for i := 0; ; i++ {
		if n.backend != nil {
			rest := segments[i:]
			remainder, err := data.FromSegments(rest, path.IsDirectory() || len(rest) == 0)
			if err != nil {
				return nil, err
			}

			return &Resolution{
				Backend:   n.backend,
				MountPath: n.path,
				Remainder: remainder,
			}, nil
		}

		if i == len(segments) {
			break
		}

		_, child := n.childIndex(t.cmp, segments[i])
		if child == nil {
			break
		}
		n = child
	}

	return nil, fmt.Errorf("%w: %s does not map to a mounted backend", data.ErrNotMounted, path.String())
}

// Mounts returns the installed mount points in path order.
func (t *Tree) Mounts() []Info {
	var infos []Info

	var visit func(n *node)
	visit = func(n *node) {
		if n == nil {
			return
		}
		if n.backend != nil {
			infos = append(infos, Info{
				Path:      n.path,
				Backend:   n.backend.Name(),
				MountedAt: n.mountedAt,
			})
		}
		for _, child := range n.children {
			visit(child)
		}
	}
	visit(t.root.Load())

	return infos
}

// Empty reports whether no backend is mounted.
func (t *Tree) Empty() bool {
	return t.root.Load() == nil
}

// insert builds the replacement spine for mounting b at the given segment
// path below n. Untouched siblings are shared by reference.
func (t *Tree) insert(n *node, full data.VirtualPath, segments []string, b backend.Backend, at time.Time) (*node, error) {
	if n == nil {
		root := &node{path: data.RootPath}
		if len(segments) == 0 {
			root.backend = b
			root.mountedAt = at
			return root, nil
		}

		root.children = []*node{synthesize(data.RootPath, segments, b, at)}
		return root, nil
	}

	if n.backend != nil {
		if len(segments) == 0 {
			return nil, fmt.Errorf("%w: %s", data.ErrAlreadyMounted, full.String())
		}
		return nil, fmt.Errorf("%w: ancestor %s is already mounted", data.ErrMountConflict, n.path.String())
	}

	if len(segments) == 0 {
		if n.subtreeHasBackend() {
			return nil, fmt.Errorf("%w: a mount exists below %s", data.ErrMountConflict, full.String())
		}

		c := n.clone()
		c.backend = b
		c.mountedAt = at
		return c, nil
	}

	_, child := n.childIndex(t.cmp, segments[0])
	if child == nil {
		return n.withChild(t.cmp, synthesize(n.path, segments, b, at)), nil
	}

	rebuilt, err := t.insert(child, full, segments[1:], b, at)
	if err != nil {
		return nil, err
	}

	return n.withChild(t.cmp, rebuilt), nil
}

// synthesize creates a fresh node chain for the remaining segments below
// parent, carrying the backend only at the leaf.
func synthesize(parent data.VirtualPath, segments []string, b backend.Backend, at time.Time) *node {
	path, err := parent.Append(segments[0] + "/")
	if err != nil {
		// Segments come from an already-validated path.
		panic(err)
	}

	n := &node{segment: segments[0], path: path}
	if len(segments) == 1 {
		n.backend = b
		n.mountedAt = at
		return n
	}

	n.children = []*node{synthesize(path, segments[1:], b, at)}
	return n
}

// remove builds the replacement spine for unmounting the given segment
// path below n. A nil returned node collapses n out of its parent; a nil
// root publishes the empty tree.
func (t *Tree) remove(n *node, full data.VirtualPath, segments []string) (*node, backend.Backend, error) {
	if n == nil {
		return nil, nil, fmt.Errorf("%w: %s", data.ErrNotMounted, full.String())
	}

	if len(segments) == 0 {
		if n.backend == nil {
			return nil, nil, fmt.Errorf("%w: %s", data.ErrNotMounted, full.String())
		}

		removed := n.backend
		if len(n.children) == 0 {
			return nil, removed, nil
		}

		c := n.clone()
		c.backend = nil
		c.mountedAt = time.Time{}
		return c, removed, nil
	}

	_, child := n.childIndex(t.cmp, segments[0])
	if child == nil {
		return nil, nil, fmt.Errorf("%w: %s", data.ErrNotMounted, full.String())
	}

	rebuilt, removed, err := t.remove(child, full, segments[1:])
	if err != nil {
		return nil, nil, err
	}

	var c *node
	if rebuilt == nil {
		c = n.withoutChild(t.cmp, segments[0])
	} else {
		c = n.withChild(t.cmp, rebuilt)
	}

	if c.backend == nil && len(c.children) == 0 {
		return nil, removed, nil
	}

	return c, removed, nil
}
