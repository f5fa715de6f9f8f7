package mount

import (
	"sort"
	"time"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// node is one immutable segment of the mount tree. A node carries a backend
// only when it is a mount point; sibling segments are kept ordered and
// unique under the tree's comparer. Nodes are never mutated after
// publication: tree updates copy the spine from the changed node up to the
// root and share every untouched subtree by reference.
type node struct {
	segment   string
	path      data.VirtualPath
	backend   backend.Backend
	mountedAt time.Time
	children  []*node
}

func (n *node) clone() *node {
	c := *n
	return &c
}

// childIndex returns the position of segment among the children, or the
// insertion position and nil when absent.
func (n *node) childIndex(cmp data.PathComparison, segment string) (int, *node) {
	i := sort.Search(len(n.children), func(i int) bool {
		return cmp.Compare(n.children[i].segment, segment) >= 0
	})

	if i < len(n.children) && cmp.Equal(n.children[i].segment, segment) {
		return i, n.children[i]
	}

	return i, nil
}

// withChild returns a copy of n with child replaced or inserted at its
// ordered position. All other children are shared by reference.
func (n *node) withChild(cmp data.PathComparison, child *node) *node {
	c := n.clone()
	i, existing := n.childIndex(cmp, child.segment)

	if existing != nil {
		c.children = make([]*node, len(n.children))
		copy(c.children, n.children)
		c.children[i] = child
		return c
	}

	c.children = make([]*node, 0, len(n.children)+1)
	c.children = append(c.children, n.children[:i]...)
	c.children = append(c.children, child)
	c.children = append(c.children, n.children[i:]...)

	return c
}

// withoutChild returns a copy of n with the named child removed.
func (n *node) withoutChild(cmp data.PathComparison, segment string) *node {
	c := n.clone()
	i, existing := n.childIndex(cmp, segment)
	if existing == nil {
		return c
	}

	c.children = make([]*node, 0, len(n.children)-1)
	c.children = append(c.children, n.children[:i]...)
	c.children = append(c.children, n.children[i+1:]...)

	return c
}

// subtreeHasBackend reports whether any node reachable from n carries a
// backend, n itself included.
func (n *node) subtreeHasBackend() bool {
	if n.backend != nil {
		return true
	}

	for _, child := range n.children {
		if child.subtreeHasBackend() {
			return true
		}
	}

	return false
}
