package data

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
)

// VirtualPath is an immutable, validated absolute path inside the virtual
// namespace. The normalized text always starts with '/'; a trailing '/'
// marks a directory path, its absence marks a file path. Every segment is
// a non-empty run of Unicode letters, digits, '_', '-' and '.', contains
// no ".." run and ends in a letter or digit.
//
// The zero value is invalid; use Parse, TryParse or MustParse.
type VirtualPath struct {
	raw string
}

// RootPath is the unique path with zero segments. It is always a directory
// and has no parent.
var RootPath = VirtualPath{raw: "/"}

// Parse validates text against the path grammar and returns the path value.
// Returns an error wrapping ErrInvalidPath if the grammar is violated.
func Parse(text string) (VirtualPath, error) {
	if text == "" {
		return VirtualPath{}, fmt.Errorf("%w: empty text", ErrInvalidPath)
	}

	if text[0] != '/' {
		return VirtualPath{}, fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, text)
	}

	if text == "/" {
		return RootPath, nil
	}

	body := text[1:]
	body = strings.TrimSuffix(body, "/")

	for _, segment := range strings.Split(body, "/") {
		if err := validateSegment(segment); err != nil {
			return VirtualPath{}, fmt.Errorf("%w: %q: %v", ErrInvalidPath, text, err)
		}
	}

	return VirtualPath{raw: text}, nil
}

// TryParse is the non-throwing variant of Parse.
func TryParse(text string) (VirtualPath, bool) {
	path, err := Parse(text)
	return path, err == nil
}

// MustParse parses text and panics on a grammar violation.
// Intended for constants and tests.
func MustParse(text string) VirtualPath {
	path, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return path
}

// FromSegments builds a path from already-validated segment names.
// An empty segment list yields the root for dir=true and fails otherwise,
// since the root has no file form.
func FromSegments(segments []string, dir bool) (VirtualPath, error) {
	if len(segments) == 0 {
		if dir {
			return RootPath, nil
		}
		return VirtualPath{}, fmt.Errorf("%w: root has no file form", ErrInvalidPath)
	}

	text := "/" + strings.Join(segments, "/")
	if dir {
		text += "/"
	}

	return Parse(text)
}

func validateSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("empty segment")
	}

	var last rune
	for _, r := range segment {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
		case r == '_' || r == '-':
		case r == '.':
			if last == '.' {
				return fmt.Errorf("consecutive dots in segment %q", segment)
			}
		default:
			return fmt.Errorf("illegal character %q in segment %q", r, segment)
		}
		last = r
	}

	if !unicode.IsLetter(last) && !unicode.IsDigit(last) {
		return fmt.Errorf("segment %q must end in a letter or digit", segment)
	}

	return nil
}

// String returns the normalized text. Parse(p.String()) always yields p.
func (p VirtualPath) String() string {
	return p.raw
}

// IsValid reports whether the path was produced by a successful parse.
func (p VirtualPath) IsValid() bool {
	return p.raw != ""
}

// IsRoot reports whether the path is the root directory.
func (p VirtualPath) IsRoot() bool {
	return p.raw == "/"
}

// IsDirectory reports whether the path denotes a directory.
func (p VirtualPath) IsDirectory() bool {
	return strings.HasSuffix(p.raw, "/")
}

// IsFile reports whether the path denotes a file.
func (p VirtualPath) IsFile() bool {
	return p.raw != "" && !p.IsDirectory()
}

// Parts returns a lazy, finite, restartable sequence of the path's segment
// names. The root yields an empty sequence.
func (p VirtualPath) Parts() iter.Seq[string] {
	return func(yield func(string) bool) {
		body := strings.Trim(p.raw, "/")
		if body == "" {
			return
		}

		for {
			i := strings.IndexByte(body, '/')
			if i < 0 {
				yield(body)
				return
			}
			if !yield(body[:i]) {
				return
			}
			body = body[i+1:]
		}
	}
}

// Segments returns the segment names as a slice. Root returns nil.
func (p VirtualPath) Segments() []string {
	var segments []string
	for segment := range p.Parts() {
		segments = append(segments, segment)
	}

	return segments
}

// FileName returns the last segment of the path, or "" at root.
func (p VirtualPath) FileName() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}

	return segments[len(segments)-1]
}

// DirectoryName returns the second-to-last segment of the path, or "" when
// no parent segment exists.
func (p VirtualPath) DirectoryName() string {
	segments := p.Segments()
	if len(segments) < 2 {
		return ""
	}

	return segments[len(segments)-2]
}

// Extension returns everything from the rightmost '.' in the final segment
// onward, including the dot. If the rightmost special character is '/' or
// absent there is no extension and "" is returned.
func (p VirtualPath) Extension() string {
	name := p.FileName()
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}

	return name[i:]
}

// HasExtension reports whether the final segment carries an extension.
func (p VirtualPath) HasExtension() bool {
	return p.Extension() != ""
}

// FileNameWithoutExtension returns the final segment with its extension
// stripped. A segment like ".3" yields "".
func (p VirtualPath) FileNameWithoutExtension() string {
	name := p.FileName()
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return name
	}

	return name[:i]
}

// Append joins a relative segment sequence under a directory path.
// Fails with ErrInvalidOperation when the receiver denotes a file and with
// ErrInvalidPath when rel is not a valid relative sequence. A trailing '/'
// in rel produces a directory path.
func (p VirtualPath) Append(rel string) (VirtualPath, error) {
	if !p.IsDirectory() {
		return VirtualPath{}, fmt.Errorf("%w: cannot append under file path %q", ErrInvalidOperation, p.raw)
	}

	if rel == "" || strings.HasPrefix(rel, "/") {
		return VirtualPath{}, fmt.Errorf("%w: %q is not a relative segment sequence", ErrInvalidPath, rel)
	}

	return Parse(p.raw + rel)
}

// AsDirectory returns the directory form of the path. Idempotent.
func (p VirtualPath) AsDirectory() VirtualPath {
	if p.IsDirectory() {
		return p
	}

	return VirtualPath{raw: p.raw + "/"}
}

// AsFile returns the file form of the path. Idempotent on file paths and
// fails with ErrInvalidOperation at root, which has no file form.
func (p VirtualPath) AsFile() (VirtualPath, error) {
	if p.IsRoot() {
		return VirtualPath{}, fmt.Errorf("%w: root has no file form", ErrInvalidOperation)
	}

	if p.IsFile() {
		return p, nil
	}

	return VirtualPath{raw: strings.TrimSuffix(p.raw, "/")}, nil
}

// ChangeExtension replaces the extension of the final segment. An empty
// newExt removes the extension; a non-empty newExt is normalized to start
// with '.' and the resulting segment is validated against the grammar.
func (p VirtualPath) ChangeExtension(newExt string) (VirtualPath, error) {
	if p.IsRoot() || !p.IsValid() {
		return VirtualPath{}, fmt.Errorf("%w: root has no extension", ErrInvalidOperation)
	}

	name := p.FileName()
	base := p.FileNameWithoutExtension()

	newName := base
	if newExt != "" {
		if !strings.HasPrefix(newExt, ".") {
			newExt = "." + newExt
		}
		newName = base + newExt
	}

	if err := validateSegment(newName); err != nil {
		return VirtualPath{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	text := p.raw
	if p.IsDirectory() {
		prefix := text[:len(text)-len(name)-1]
		return VirtualPath{raw: prefix + newName + "/"}, nil
	}

	prefix := text[:len(text)-len(name)]
	return VirtualPath{raw: prefix + newName}, nil
}

// IsParentOf reports whether the receiver is a (possibly indirect) parent
// directory of other. A path is never a parent of itself and file paths are
// parents of nothing. The prefix test on the normalized text is correct
// because both paths are absolute and normalized.
func (p VirtualPath) IsParentOf(other VirtualPath) bool {
	return p.IsDirectory() && p.raw != other.raw && strings.HasPrefix(other.raw, p.raw)
}

// IsChildOf reports whether the receiver lives below the directory other.
func (p VirtualPath) IsChildOf(other VirtualPath) bool {
	return other.IsParentOf(p)
}

// AddBasePath prefixes the path with a directory-valued base.
func (p VirtualPath) AddBasePath(base VirtualPath) (VirtualPath, error) {
	if !base.IsDirectory() {
		return VirtualPath{}, fmt.Errorf("%w: base path %q is not a directory", ErrInvalidArgument, base.raw)
	}

	if p.IsRoot() {
		return base, nil
	}

	return VirtualPath{raw: base.raw + p.raw[1:]}, nil
}

// RemoveBasePath strips a directory-valued base prefix from the path.
// Fails with ErrInvalidOperation when base is not a literal prefix.
func (p VirtualPath) RemoveBasePath(base VirtualPath) (VirtualPath, error) {
	if !base.IsDirectory() {
		return VirtualPath{}, fmt.Errorf("%w: base path %q is not a directory", ErrInvalidArgument, base.raw)
	}

	if p.raw == base.raw {
		return RootPath, nil
	}

	if !strings.HasPrefix(p.raw, base.raw) {
		return VirtualPath{}, fmt.Errorf("%w: %q is not based on %q", ErrInvalidOperation, p.raw, base.raw)
	}

	return VirtualPath{raw: "/" + p.raw[len(base.raw):]}, nil
}

// Compare orders two paths using the given comparison strategy.
func (p VirtualPath) Compare(other VirtualPath, cmp PathComparison) int {
	return cmp.Compare(p.raw, other.raw)
}

// Equal reports path equality under the given comparison strategy.
// Plain == remains the ordinal default.
func (p VirtualPath) Equal(other VirtualPath, cmp PathComparison) bool {
	return cmp.Equal(p.raw, other.raw)
}
