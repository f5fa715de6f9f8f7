package data

import "iter"

// Enumeration is a lazy, pull-driven sequence of virtual paths. Consumers
// may stop pulling at any time; the sequence is restartable and never
// materializes a full listing up front. A non-nil error terminates the
// sequence.
type Enumeration = iter.Seq2[VirtualPath, error]

// EnumerateScope selects between listing only the immediate children of a
// directory or walking its whole subtree.
type EnumerateScope int

const (
	ScopeTopLevel EnumerateScope = iota
	ScopeRecursive
)

func (s EnumerateScope) String() string {
	switch s {
	case ScopeTopLevel:
		return "top-level"
	case ScopeRecursive:
		return "recursive"
	default:
		return "unknown"
	}
}

// EnumerateTargets selects which entry kinds an enumeration yields.
type EnumerateTargets int

const (
	TargetFiles EnumerateTargets = 1 << iota
	TargetDirectories

	TargetBoth = TargetFiles | TargetDirectories
)

// WantsFiles checks if file entries are requested.
func (t EnumerateTargets) WantsFiles() bool {
	return t&TargetFiles != 0
}

// WantsDirectories checks if directory entries are requested.
func (t EnumerateTargets) WantsDirectories() bool {
	return t&TargetDirectories != 0
}

// FailedEnumeration returns a sequence that yields nothing but err.
func FailedEnumeration(err error) Enumeration {
	return func(yield func(VirtualPath, error) bool) {
		yield(VirtualPath{}, err)
	}
}
