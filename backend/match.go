package backend

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/nwerse/virtfs/data"
)

// Matcher reports whether an entry name matches an enumeration pattern.
type Matcher func(name string) bool

// CompilePattern builds a Matcher from a glob pattern. The pattern is
// matched against the final segment of each enumerated entry; an empty
// pattern (or "*") matches everything.
func CompilePattern(pattern string) (Matcher, error) {
	if pattern == "" || pattern == "*" {
		return func(string) bool { return true }, nil
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pattern %q: %v", data.ErrInvalidArgument, pattern, err)
	}

	return g.Match, nil
}
