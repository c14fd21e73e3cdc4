package fstest

import (
	"context"
	"testing"
	"time"

	"adbsync/internal/fs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Harness wires a provider into the conformance suite. Root is an existing
// empty directory inside the provider's namespace; WriteFile and Mkdir
// create fixtures through a side channel so the suite only exercises the
// fs.FileSystem methods under test.
type Harness struct {
	FS        fs.FileSystem
	Root      string
	WriteFile func(t *testing.T, p string, data []byte)
	Mkdir     func(t *testing.T, p string)
}

// TestFileSystem runs the provider contract tests. newHarness must return
// a fresh, empty root for every call.
//
// Example usage:
//
//	func TestConformance(t *testing.T) {
//	    fstest.TestFileSystem(t, func(t *testing.T) *fstest.Harness {
//	        return &fstest.Harness{FS: myprovider.New(), ...}
//	    })
//	}
func TestFileSystem(t *testing.T, newHarness func(t *testing.T) *Harness) {
	ctx := context.Background()

	t.Run("ListChildren", func(t *testing.T) {
		h := newHarness(t)
		h.WriteFile(t, h.Root+"/b.txt", []byte("bb"))
		h.Mkdir(t, h.Root+"/a")
		h.WriteFile(t, h.Root+"/a/nested", []byte("x"))

		names, err := h.FS.ListChildren(ctx, h.Root)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b.txt"}, names)
	})

	t.Run("StatKinds", func(t *testing.T) {
		h := newHarness(t)
		h.WriteFile(t, h.Root+"/f", []byte("hello"))
		h.Mkdir(t, h.Root+"/d")

		meta, err := h.FS.StatNoFollow(ctx, h.Root+"/f")
		require.NoError(t, err)
		assert.Equal(t, fs.KindRegular, meta.Kind)
		assert.EqualValues(t, 5, meta.Size)

		meta, err = h.FS.StatFollow(ctx, h.Root+"/d")
		require.NoError(t, err)
		assert.True(t, meta.IsDir())
	})

	t.Run("StatNotFound", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.FS.StatNoFollow(ctx, h.Root+"/missing")
		require.Error(t, err)
		assert.True(t, fs.IsNotFound(err), "got %v", err)

		_, err = h.FS.StatFollow(ctx, h.Root+"/missing")
		assert.True(t, fs.IsNotFound(err), "got %v", err)
	})

	t.Run("CreateDirTree", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.FS.CreateDirTree(ctx, h.Root+"/x/y/z"))
		meta, err := h.FS.StatNoFollow(ctx, h.Root+"/x/y")
		require.NoError(t, err)
		assert.True(t, meta.IsDir())
		// existing directories are fine
		require.NoError(t, h.FS.CreateDirTree(ctx, h.Root+"/x/y/z"))
	})

	t.Run("DeleteEntry", func(t *testing.T) {
		h := newHarness(t)
		h.WriteFile(t, h.Root+"/f", []byte("x"))
		require.NoError(t, h.FS.DeleteEntry(ctx, h.Root+"/f"))
		_, err := h.FS.StatNoFollow(ctx, h.Root+"/f")
		assert.True(t, fs.IsNotFound(err))
	})

	t.Run("DeleteEmptyDir", func(t *testing.T) {
		h := newHarness(t)
		h.Mkdir(t, h.Root+"/full")
		h.WriteFile(t, h.Root+"/full/f", []byte("x"))
		h.Mkdir(t, h.Root+"/empty")

		require.NoError(t, h.FS.DeleteEmptyDir(ctx, h.Root+"/empty"))
		_, err := h.FS.StatNoFollow(ctx, h.Root+"/empty")
		assert.True(t, fs.IsNotFound(err))

		assert.Error(t, h.FS.DeleteEmptyDir(ctx, h.Root+"/full"))
	})

	t.Run("SetTimes", func(t *testing.T) {
		h := newHarness(t)
		h.WriteFile(t, h.Root+"/f", []byte("x"))
		mtime := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
		atime := mtime.Add(time.Hour)

		require.NoError(t, h.FS.SetTimes(ctx, h.Root+"/f", atime, mtime))
		meta, err := h.FS.StatNoFollow(ctx, h.Root+"/f")
		require.NoError(t, err)
		assert.True(t, meta.ModTime.Equal(mtime), "mtime %v", meta.ModTime)
	})

	t.Run("ExpandPattern", func(t *testing.T) {
		h := newHarness(t)
		h.WriteFile(t, h.Root+"/a.txt", []byte("x"))
		h.WriteFile(t, h.Root+"/b.txt", []byte("x"))
		h.WriteFile(t, h.Root+"/c.log", []byte("x"))

		matches, err := h.FS.ExpandPattern(ctx, h.Root+"/*.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{h.Root + "/a.txt", h.Root + "/b.txt"}, matches)
	})
}
