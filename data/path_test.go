package data_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/nwerse/virtfs/data"
)

// TestParse_Grammar verifies which path texts the grammar accepts.
func TestParse_Grammar(t *testing.T) {
	cases := []struct {
		text  string
		valid bool
	}{
		{"/", true},
		{"/a", true},
		{"/a/", true},
		{"/a/b/c", true},
		{"/a/b/c/", true},
		{"/a.b", true},
		{"/_a", true},
		{"/-a", true},
		{"/.3", true},
		{"/save-01/slot_2/data.bin", true},
		{"/äöü/文件", true},

		{"", false},
		{"asd", false},
		{"//", false},
		{"/a//b", false},
		{"/a-", false},
		{"/a.", false},
		{"/a_", false},
		{"/a..b", false},
		{"/a b", false},
		{"/a/../b", false},
	}

	for _, c := range cases {
		t.Run(c.text, func(tst *testing.T) {
			path, err := data.Parse(c.text)

			if c.valid && err != nil {
				tst.Fatalf("Parse(%q) failed: %v", c.text, err)
			}
			if !c.valid {
				if err == nil {
					tst.Fatalf("Parse(%q) accepted invalid text", c.text)
				}
				if !errors.Is(err, data.ErrInvalidPath) {
					tst.Errorf("Parse(%q) error does not wrap ErrInvalidPath: %v", c.text, err)
				}
				return
			}

			// Round-trip: parsing the normalized text yields the same path.
			again, err := data.Parse(path.String())
			if err != nil {
				tst.Fatalf("Round-trip parse failed: %v", err)
			}
			if again != path {
				tst.Errorf("Round-trip mismatch: %q != %q", again.String(), path.String())
			}
		})
	}
}

func TestVirtualPath_Shape(t *testing.T) {
	root := data.RootPath
	if !root.IsRoot() || !root.IsDirectory() || root.IsFile() {
		t.Errorf("Root shape wrong: root=%v dir=%v file=%v", root.IsRoot(), root.IsDirectory(), root.IsFile())
	}
	if len(root.Segments()) != 0 {
		t.Errorf("Root must have zero segments, got %v", root.Segments())
	}

	file := data.MustParse("/a/b")
	if file.IsDirectory() || !file.IsFile() {
		t.Errorf("File shape wrong for %q", file.String())
	}

	dir := data.MustParse("/a/b/")
	if !dir.IsDirectory() || dir.IsFile() {
		t.Errorf("Directory shape wrong for %q", dir.String())
	}

	if file == dir {
		t.Error("File and directory form must be distinct values")
	}

	var zero data.VirtualPath
	if zero.IsValid() {
		t.Error("Zero value must be invalid")
	}
}

func TestVirtualPath_PartsAndSegments(t *testing.T) {
	path := data.MustParse("/a/b/c")

	want := []string{"a", "b", "c"}
	if got := path.Segments(); !slices.Equal(got, want) {
		t.Errorf("Segments() = %v, want %v", got, want)
	}

	// Early break must not panic and must stay restartable.
	var first []string
	for segment := range path.Parts() {
		first = append(first, segment)
		break
	}
	if !slices.Equal(first, []string{"a"}) {
		t.Errorf("Early break yielded %v", first)
	}

	var second []string
	for segment := range path.Parts() {
		second = append(second, segment)
	}
	if !slices.Equal(second, want) {
		t.Errorf("Restarted sequence yielded %v, want %v", second, want)
	}
}

func TestVirtualPath_Names(t *testing.T) {
	cases := []struct {
		text      string
		fileName  string
		dirName   string
		ext       string
		nameNoExt string
	}{
		{"/", "", "", "", ""},
		{"/a", "a", "", "", "a"},
		{"/a/b.txt", "b.txt", "a", ".txt", "b"},
		{"/a/b/", "b", "a", "", "b"},
		{"/a/.txt", ".txt", "a", ".txt", ""},
		{"/a/b.tar.gz", "b.tar.gz", "a", ".gz", "b.tar"},
		{"/dir.d/plain", "plain", "dir.d", "", "plain"},
	}

	for _, c := range cases {
		t.Run(c.text, func(tst *testing.T) {
			path := data.MustParse(c.text)

			if got := path.FileName(); got != c.fileName {
				tst.Errorf("FileName() = %q, want %q", got, c.fileName)
			}
			if got := path.DirectoryName(); got != c.dirName {
				tst.Errorf("DirectoryName() = %q, want %q", got, c.dirName)
			}
			if got := path.Extension(); got != c.ext {
				tst.Errorf("Extension() = %q, want %q", got, c.ext)
			}
			if got := path.FileNameWithoutExtension(); got != c.nameNoExt {
				tst.Errorf("FileNameWithoutExtension() = %q, want %q", got, c.nameNoExt)
			}
			if got := path.HasExtension(); got != (c.ext != "") {
				tst.Errorf("HasExtension() = %v, want %v", got, c.ext != "")
			}
		})
	}
}

func TestVirtualPath_Append(t *testing.T) {
	dir := data.MustParse("/a/b/")

	file, err := dir.Append("c/d.txt")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if file.String() != "/a/b/c/d.txt" || !file.IsFile() {
		t.Errorf("Append produced %q", file.String())
	}

	sub, err := dir.Append("c/")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if sub.String() != "/a/b/c/" || !sub.IsDirectory() {
		t.Errorf("Append produced %q", sub.String())
	}

	if _, err := data.MustParse("/a/b").Append("c"); !errors.Is(err, data.ErrInvalidOperation) {
		t.Errorf("Append under file path must fail with ErrInvalidOperation, got %v", err)
	}

	if _, err := dir.Append("/c"); !errors.Is(err, data.ErrInvalidPath) {
		t.Errorf("Append of absolute text must fail with ErrInvalidPath, got %v", err)
	}

	if _, err := dir.Append(""); !errors.Is(err, data.ErrInvalidPath) {
		t.Errorf("Append of empty text must fail with ErrInvalidPath, got %v", err)
	}
}

func TestVirtualPath_ShapeConversion(t *testing.T) {
	file := data.MustParse("/a/b")
	dir := file.AsDirectory()

	if dir.String() != "/a/b/" {
		t.Errorf("AsDirectory() = %q", dir.String())
	}
	if dir.AsDirectory() != dir {
		t.Error("AsDirectory must be idempotent")
	}

	back, err := dir.AsFile()
	if err != nil {
		t.Fatalf("AsFile failed: %v", err)
	}
	if back != file {
		t.Errorf("AsFile() = %q, want %q", back.String(), file.String())
	}

	if _, err := data.RootPath.AsFile(); !errors.Is(err, data.ErrInvalidOperation) {
		t.Errorf("Root AsFile must fail with ErrInvalidOperation, got %v", err)
	}
	if data.RootPath.AsDirectory() != data.RootPath {
		t.Error("Root AsDirectory must return root")
	}
}

func TestVirtualPath_ChangeExtension(t *testing.T) {
	path := data.MustParse("/a/b.txt")

	changed, err := path.ChangeExtension("md")
	if err != nil {
		t.Fatalf("ChangeExtension failed: %v", err)
	}
	if changed.String() != "/a/b.md" {
		t.Errorf("ChangeExtension = %q", changed.String())
	}

	dotted, err := path.ChangeExtension(".json")
	if err != nil {
		t.Fatalf("ChangeExtension failed: %v", err)
	}
	if dotted.String() != "/a/b.json" {
		t.Errorf("ChangeExtension with leading dot = %q", dotted.String())
	}

	removed, err := path.ChangeExtension("")
	if err != nil {
		t.Fatalf("ChangeExtension removal failed: %v", err)
	}
	if removed.String() != "/a/b" {
		t.Errorf("ChangeExtension removal = %q", removed.String())
	}

	dir, err := data.MustParse("/a/b.old/").ChangeExtension("new")
	if err != nil {
		t.Fatalf("ChangeExtension on directory failed: %v", err)
	}
	if dir.String() != "/a/b.new/" || !dir.IsDirectory() {
		t.Errorf("ChangeExtension on directory = %q", dir.String())
	}

	// Removing the only extension of a dot-leading name leaves an empty
	// segment, which the grammar rejects.
	if _, err := data.MustParse("/a/.txt").ChangeExtension(""); !errors.Is(err, data.ErrInvalidPath) {
		t.Errorf("Expected ErrInvalidPath, got %v", err)
	}

	if _, err := data.RootPath.ChangeExtension("txt"); !errors.Is(err, data.ErrInvalidOperation) {
		t.Errorf("Root ChangeExtension must fail with ErrInvalidOperation, got %v", err)
	}
}

func TestVirtualPath_ParentChild(t *testing.T) {
	cases := []struct {
		parent string
		child  string
		want   bool
	}{
		{"/", "/a", true},
		{"/a/", "/a/b", true},
		{"/a/", "/a/b/c/", true},
		{"/a/", "/a/", false},
		{"/a/", "/ab", false},
		{"/a/b/", "/a/", false},
		{"/a", "/a/b", false},
	}

	for _, c := range cases {
		parent := data.MustParse(c.parent)
		child := data.MustParse(c.child)

		if got := parent.IsParentOf(child); got != c.want {
			t.Errorf("IsParentOf(%q, %q) = %v, want %v", c.parent, c.child, got, c.want)
		}
		if got := child.IsChildOf(parent); got != c.want {
			t.Errorf("IsChildOf(%q, %q) = %v, want %v", c.child, c.parent, got, c.want)
		}
	}
}

func TestVirtualPath_BasePath(t *testing.T) {
	base := data.MustParse("/mnt/save/")

	full, err := data.MustParse("/slot/data.bin").AddBasePath(base)
	if err != nil {
		t.Fatalf("AddBasePath failed: %v", err)
	}
	if full.String() != "/mnt/save/slot/data.bin" {
		t.Errorf("AddBasePath = %q", full.String())
	}

	if rooted, err := data.RootPath.AddBasePath(base); err != nil || rooted != base {
		t.Errorf("AddBasePath(root) = %q, %v", rooted.String(), err)
	}

	rel, err := full.RemoveBasePath(base)
	if err != nil {
		t.Fatalf("RemoveBasePath failed: %v", err)
	}
	if rel.String() != "/slot/data.bin" {
		t.Errorf("RemoveBasePath = %q", rel.String())
	}

	if same, err := base.RemoveBasePath(base); err != nil || !same.IsRoot() {
		t.Errorf("RemoveBasePath(base, base) = %q, %v", same.String(), err)
	}

	if _, err := data.MustParse("/other/x").RemoveBasePath(base); !errors.Is(err, data.ErrInvalidOperation) {
		t.Errorf("RemoveBasePath on unrelated path must fail with ErrInvalidOperation, got %v", err)
	}

	if _, err := full.AddBasePath(data.MustParse("/file")); !errors.Is(err, data.ErrInvalidArgument) {
		t.Errorf("AddBasePath with file base must fail with ErrInvalidArgument, got %v", err)
	}
}

func TestFromSegments(t *testing.T) {
	file, err := data.FromSegments([]string{"a", "b"}, false)
	if err != nil || file.String() != "/a/b" {
		t.Errorf("FromSegments file = %q, %v", file.String(), err)
	}

	dir, err := data.FromSegments([]string{"a", "b"}, true)
	if err != nil || dir.String() != "/a/b/" {
		t.Errorf("FromSegments dir = %q, %v", dir.String(), err)
	}

	root, err := data.FromSegments(nil, true)
	if err != nil || !root.IsRoot() {
		t.Errorf("FromSegments root = %q, %v", root.String(), err)
	}

	if _, err := data.FromSegments(nil, false); !errors.Is(err, data.ErrInvalidPath) {
		t.Errorf("FromSegments empty file form must fail, got %v", err)
	}
}
