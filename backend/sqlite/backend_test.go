package sqlite_test

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"slices"
	"testing"

	"github.com/nwerse/virtfs/backend/sqlite"
	"github.com/nwerse/virtfs/data"
)

func newTestBackend(tst *testing.T) *sqlite.SQLiteBackend {
	sb, err := sqlite.NewSQLiteBackend(":memory:")
	if err != nil {
		tst.Fatalf("Failed to create backend: %v", err)
	}
	if err := sb.Open(tst.Context()); err != nil {
		tst.Fatalf("Failed to open backend: %v", err)
	}

	return sb
}

func TestSQLiteBackend_CreateDeleteExists(t *testing.T) {
	ctx := t.Context()
	sb := newTestBackend(t)
	defer sb.Close(ctx)

	if err := sb.Create(ctx, data.MustParse("/a/b/")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, text := range []string{"/a/", "/a/b/"} {
		exists, err := sb.Exists(ctx, data.MustParse(text))
		if err != nil || !exists {
			t.Errorf("Exists(%q) = %v, %v", text, exists, err)
		}
	}

	if err := sb.Create(ctx, data.MustParse("/a/b/f.txt")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sb.Create(ctx, data.MustParse("/a/b/f.txt")); !errors.Is(err, data.ErrExist) {
		t.Errorf("Duplicate create must fail with ErrExist, got %v", err)
	}
	if err := sb.Create(ctx, data.MustParse("/missing/g.txt")); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Create without parent must fail with ErrNotExist, got %v", err)
	}

	if err := sb.Delete(ctx, data.MustParse("/a/"), false); !errors.Is(err, data.ErrDirectoryNotEmpty) {
		t.Errorf("Non-recursive delete must fail with ErrDirectoryNotEmpty, got %v", err)
	}
	if err := sb.Delete(ctx, data.MustParse("/a/"), true); err != nil {
		t.Fatalf("Recursive delete failed: %v", err)
	}

	exists, err := sb.Exists(ctx, data.MustParse("/a/b/f.txt"))
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("File must be gone after recursive delete")
	}
}

func TestSQLiteBackend_StreamRoundTrip(t *testing.T) {
	ctx := t.Context()
	sb := newTestBackend(t)
	defer sb.Close(ctx)

	path := data.MustParse("/f.bin")

	stream, err := sb.OpenStream(ctx, path, data.AccessModeWrite|data.AccessModeCreate, data.ShareModeNone)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	if _, err := stream.Write(payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	stream, err = sb.OpenStream(ctx, path, data.AccessModeRead, data.ShareModeNone)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	stream.Close()

	if !bytes.Equal(got, payload) {
		t.Errorf("Read %v, want %v", got, payload)
	}
}

func TestSQLiteBackend_Enumerate(t *testing.T) {
	ctx := t.Context()
	sb := newTestBackend(t)
	defer sb.Close(ctx)

	for _, text := range []string{"/cfg/", "/cfg/app.json", "/cfg/db.json", "/cfg/keys/", "/cfg/keys/k1"} {
		if err := sb.Create(ctx, data.MustParse(text)); err != nil {
			t.Fatalf("Create(%q) failed: %v", text, err)
		}
	}

	var got []string
	for entry, err := range sb.Enumerate(ctx, data.MustParse("/cfg/"), "*.json", data.ScopeTopLevel, data.TargetFiles) {
		if err != nil {
			t.Fatalf("Enumerate failed: %v", err)
		}
		got = append(got, entry.String())
	}

	if want := []string{"/cfg/app.json", "/cfg/db.json"}; !slices.Equal(got, want) {
		t.Errorf("Enumerate = %v, want %v", got, want)
	}
}

// TestSQLiteBackend_Persistence verifies that a file-backed database survives
// a full close and reopen cycle.
func TestSQLiteBackend_Persistence(t *testing.T) {
	ctx := t.Context()
	dbPath := filepath.Join(t.TempDir(), "store.db")

	sb, err := sqlite.NewSQLiteBackend(dbPath)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	if err := sb.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stream, err := sb.OpenStream(ctx, data.MustParse("/persisted.txt"), data.AccessModeWrite|data.AccessModeCreate, data.ShareModeNone)
	if err != nil {
		t.Fatalf("Open stream failed: %v", err)
	}
	if _, err := stream.Write([]byte("still here")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sb.Close(ctx); err != nil {
		t.Fatalf("Backend close failed: %v", err)
	}

	reopened, err := sqlite.NewSQLiteBackend(dbPath)
	if err != nil {
		t.Fatalf("Failed to recreate backend: %v", err)
	}
	if err := reopened.Open(ctx); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close(ctx)

	stream, err = reopened.OpenStream(ctx, data.MustParse("/persisted.txt"), data.AccessModeRead, data.ShareModeNone)
	if err != nil {
		t.Fatalf("Open stream after reopen failed: %v", err)
	}
	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	stream.Close()

	if !bytes.Equal(got, []byte("still here")) {
		t.Errorf("Read %q after reopen", got)
	}
}
