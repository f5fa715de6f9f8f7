package data

import "strings"

// PathComparison selects between the two supported path comparison
// strategies. The strategy is chosen once when constructing a filesystem or
// mount tree and is not swappable at runtime. Ordinal is always the default.
type PathComparison int

const (
	// Ordinal compares paths byte for byte.
	Ordinal PathComparison = iota

	// OrdinalIgnoreCase compares paths byte for byte after simple Unicode
	// case folding. Never the default; intended for backends that sit on
	// case-insensitive stores.
	OrdinalIgnoreCase
)

func (c PathComparison) String() string {
	switch c {
	case Ordinal:
		return "ordinal"
	case OrdinalIgnoreCase:
		return "ordinal-ignore-case"
	default:
		return "unknown"
	}
}

// Compare returns -1, 0 or +1 ordering a against b.
// Compare, Equal and HasPrefix share one folding (strings.ToLower) so that
// ordered lookups and equality checks never disagree on runes with
// non-trivial case mappings.
func (c PathComparison) Compare(a, b string) int {
	if c == OrdinalIgnoreCase {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}

	return strings.Compare(a, b)
}

// Equal reports whether a and b are the same path text.
func (c PathComparison) Equal(a, b string) bool {
	if c == OrdinalIgnoreCase {
		return strings.ToLower(a) == strings.ToLower(b)
	}

	return a == b
}

// HasPrefix reports whether s begins with prefix.
func (c PathComparison) HasPrefix(s, prefix string) bool {
	if c == OrdinalIgnoreCase {
		return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
	}

	return strings.HasPrefix(s, prefix)
}
