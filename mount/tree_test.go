package mount_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nwerse/virtfs/backend/memory"
	"github.com/nwerse/virtfs/data"
	"github.com/nwerse/virtfs/mount"
)

func TestTree_MountAndResolve(t *testing.T) {
	tree := mount.NewTree(data.Ordinal)

	saves := memory.NewMemoryBackend()
	cache := memory.NewMemoryBackend()

	if err := tree.Mount(data.MustParse("/save/1/"), saves); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := tree.Mount(data.MustParse("/cache/"), cache); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	res, err := tree.Resolve(data.MustParse("/save/1/x/y"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Backend != saves {
		t.Error("Resolved to the wrong backend")
	}
	if res.MountPath.String() != "/save/1/" {
		t.Errorf("MountPath = %q", res.MountPath.String())
	}
	if res.Remainder.String() != "/x/y" {
		t.Errorf("Remainder = %q", res.Remainder.String())
	}

	// The remainder keeps the resolved path's shape.
	res, err = tree.Resolve(data.MustParse("/save/1/x/"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Remainder.IsDirectory() || res.Remainder.String() != "/x/" {
		t.Errorf("Remainder = %q", res.Remainder.String())
	}

	// An exact match on the mount point leaves the root as remainder,
	// regardless of the queried shape.
	for _, text := range []string{"/save/1/", "/save/1"} {
		res, err = tree.Resolve(data.MustParse(text))
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", text, err)
		}
		if !res.Remainder.IsRoot() {
			t.Errorf("Resolve(%q) remainder = %q, want root", text, res.Remainder.String())
		}
	}

	if _, err := tree.Resolve(data.MustParse("/other/x")); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Unmapped path must fail with ErrNotMounted, got %v", err)
	}

	// Intermediate spine nodes carry no backend themselves.
	if _, err := tree.Resolve(data.MustParse("/save/")); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Spine path must fail with ErrNotMounted, got %v", err)
	}
}

func TestTree_MountConflicts(t *testing.T) {
	t.Run("duplicate", func(tst *testing.T) {
		tree := mount.NewTree(data.Ordinal)

		if err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend()); err != nil {
			tst.Fatalf("Mount failed: %v", err)
		}
		if err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend()); !errors.Is(err, data.ErrAlreadyMounted) {
			tst.Errorf("Duplicate mount must fail with ErrAlreadyMounted, got %v", err)
		}
	})

	t.Run("below-existing", func(tst *testing.T) {
		tree := mount.NewTree(data.Ordinal)

		if err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend()); err != nil {
			tst.Fatalf("Mount failed: %v", err)
		}
		if err := tree.Mount(data.MustParse("/save/1/"), memory.NewMemoryBackend()); !errors.Is(err, data.ErrMountConflict) {
			tst.Errorf("Nested mount must fail with ErrMountConflict, got %v", err)
		}
	})

	t.Run("above-existing", func(tst *testing.T) {
		tree := mount.NewTree(data.Ordinal)

		if err := tree.Mount(data.MustParse("/save/1/"), memory.NewMemoryBackend()); err != nil {
			tst.Fatalf("Mount failed: %v", err)
		}
		if err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend()); !errors.Is(err, data.ErrMountConflict) {
			tst.Errorf("Ancestor mount must fail with ErrMountConflict, got %v", err)
		}
	})

	t.Run("conflicts-wrap-invalid-operation", func(tst *testing.T) {
		tree := mount.NewTree(data.Ordinal)

		if err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend()); err != nil {
			tst.Fatalf("Mount failed: %v", err)
		}

		err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend())
		if !errors.Is(err, data.ErrInvalidOperation) {
			tst.Errorf("Mount conflicts must wrap ErrInvalidOperation, got %v", err)
		}
	})

	t.Run("file-shaped-mount-point", func(tst *testing.T) {
		tree := mount.NewTree(data.Ordinal)

		err := tree.Mount(data.MustParse("/save"), memory.NewMemoryBackend())
		if !errors.Is(err, data.ErrInvalidArgument) {
			tst.Errorf("File-shaped mount point must fail with ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("siblings-allowed", func(tst *testing.T) {
		tree := mount.NewTree(data.Ordinal)

		for _, text := range []string{"/save/1/", "/save/2/", "/cache/"} {
			if err := tree.Mount(data.MustParse(text), memory.NewMemoryBackend()); err != nil {
				tst.Fatalf("Mount(%q) failed: %v", text, err)
			}
		}
	})
}

func TestTree_UnmountComposition(t *testing.T) {
	paths := []string{"/a/", "/b/c/", "/b/d/", "/e/f/g/"}

	// Removing the mounts in any order must collapse the tree back to empty.
	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
	}

	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(tst *testing.T) {
			tree := mount.NewTree(data.Ordinal)

			backends := make([]*memory.MemoryBackend, len(paths))
			for i, text := range paths {
				backends[i] = memory.NewMemoryBackend()
				if err := tree.Mount(data.MustParse(text), backends[i]); err != nil {
					tst.Fatalf("Mount(%q) failed: %v", text, err)
				}
			}

			if got := len(tree.Mounts()); got != len(paths) {
				tst.Fatalf("Mounts() returned %d entries, want %d", got, len(paths))
			}

			for _, i := range order {
				removed, err := tree.Unmount(data.MustParse(paths[i]))
				if err != nil {
					tst.Fatalf("Unmount(%q) failed: %v", paths[i], err)
				}
				if removed != backends[i] {
					tst.Errorf("Unmount(%q) returned the wrong backend", paths[i])
				}
			}

			if !tree.Empty() {
				tst.Error("Tree must be empty after removing every mount")
			}
		})
	}
}

func TestTree_UnmountErrors(t *testing.T) {
	tree := mount.NewTree(data.Ordinal)

	if _, err := tree.Unmount(data.MustParse("/a/")); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Unmount on empty tree must fail with ErrNotMounted, got %v", err)
	}

	if err := tree.Mount(data.MustParse("/a/b/"), memory.NewMemoryBackend()); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	// The spine node above the mount carries no backend.
	if _, err := tree.Unmount(data.MustParse("/a/")); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Unmount of spine path must fail with ErrNotMounted, got %v", err)
	}

	if _, err := tree.Unmount(data.MustParse("/a/b/c/")); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Unmount below the mount must fail with ErrNotMounted, got %v", err)
	}
}

func TestTree_RootMount(t *testing.T) {
	tree := mount.NewTree(data.Ordinal)
	storage := memory.NewMemoryBackend()

	if err := tree.Mount(data.RootPath, storage); err != nil {
		t.Fatalf("Mount at root failed: %v", err)
	}

	res, err := tree.Resolve(data.MustParse("/any/depth/file"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Backend != storage || res.Remainder.String() != "/any/depth/file" {
		t.Errorf("Root resolution wrong: remainder %q", res.Remainder.String())
	}

	// Nothing else fits next to a root mount.
	if err := tree.Mount(data.MustParse("/save/"), memory.NewMemoryBackend()); !errors.Is(err, data.ErrMountConflict) {
		t.Errorf("Mount below root must fail with ErrMountConflict, got %v", err)
	}

	if _, err := tree.Unmount(data.RootPath); err != nil {
		t.Fatalf("Unmount at root failed: %v", err)
	}
	if !tree.Empty() {
		t.Error("Tree must be empty after root unmount")
	}
}

func TestTree_IgnoreCaseComparison(t *testing.T) {
	tree := mount.NewTree(data.OrdinalIgnoreCase)

	storage := memory.NewMemoryBackend()
	if err := tree.Mount(data.MustParse("/Save/"), storage); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	res, err := tree.Resolve(data.MustParse("/save/slot1"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Backend != storage {
		t.Error("Case-folded resolution must reach the mounted backend")
	}

	if err := tree.Mount(data.MustParse("/SAVE/"), memory.NewMemoryBackend()); !errors.Is(err, data.ErrAlreadyMounted) {
		t.Errorf("Case-folded duplicate must fail with ErrAlreadyMounted, got %v", err)
	}
}

// TestTree_ConcurrentWriters runs many writers against disjoint mount points
// and verifies no update gets lost to the publish race.
func TestTree_ConcurrentWriters(t *testing.T) {
	tree := mount.NewTree(data.Ordinal)

	const writers = 32

	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := data.MustParse(fmt.Sprintf("/w%02d/", i))
			errs[i] = tree.Mount(path, memory.NewMemoryBackend())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Writer %d failed: %v", i, err)
		}
	}
	if got := len(tree.Mounts()); got != writers {
		t.Fatalf("Mounts() returned %d entries, want %d", got, writers)
	}

	// Readers resolve while every mount is removed concurrently.
	var readers sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}

				for i := range writers {
					path := data.MustParse(fmt.Sprintf("/w%02d/x", i))
					if res, err := tree.Resolve(path); err == nil && res.Backend == nil {
						t.Error("Resolution must never observe a nil backend")
						return
					}
				}
			}
		}()
	}

	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := data.MustParse(fmt.Sprintf("/w%02d/", i))
			errs[i] = func() error {
				_, err := tree.Unmount(path)
				return err
			}()
		}()
	}
	wg.Wait()
	close(stop)
	readers.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Unmount %d failed: %v", i, err)
		}
	}
	if !tree.Empty() {
		t.Error("Tree must be empty after concurrent unmounts")
	}
}
