package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"adbsync/internal/database"
	"adbsync/internal/fs/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	local  *fstest.MemFS
	remote *fstest.MemRemote
	engine *Engine
	events []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.local, h.remote = fstest.NewPair()
	h.engine = NewEngine(&EngineOptions{
		LocalFS:  h.local,
		RemoteFS: h.remote,
		OnEvent:  func(ev Event) { h.events = append(h.events, ev) },
	})
	return h
}

func (h *harness) run(t *testing.T, p Policy) (*Report, error) {
	t.Helper()
	return h.engine.Run(context.Background(), "/l", "/r", p)
}

func (h *harness) eventsOf(kind EventKind) []Event {
	var out []Event
	for _, ev := range h.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func data(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestDeleteMissingScenario(t *testing.T) {
	h := newHarness(t)
	h.local.WriteFile("/l/a/file1", data(10), t0)
	h.remote.WriteFile("/r/a/file1", data(10), t0)
	h.remote.WriteFile("/r/b/file2", data(3), t0)

	p := DefaultPolicy()
	p.DeleteMissing = true
	rep, err := h.run(t, p)
	require.NoError(t, err)

	assert.Equal(t, []string{"rm /r/b/file2", "rmdir /r/b"}, h.remote.Ops)
	assert.True(t, h.remote.Exists("/r/a/file1"))
	assert.False(t, h.remote.Exists("/r/b"))
	assert.Zero(t, rep.Bytes)
	assert.Equal(t, 2, rep.Deleted)
	assert.Equal(t, 1, rep.Skipped)
	assert.Empty(t, h.local.Ops)
}

func TestDeletionRefusedWithoutCommonGround(t *testing.T) {
	h := newHarness(t)
	// 本地根目录不存在 (例如路径拼错)
	h.remote.WriteFile("/r/precious", data(5), t0)

	p := DefaultPolicy()
	p.DeleteMissing = true
	rep, err := h.run(t, p)
	require.NoError(t, err)

	assert.Empty(t, h.remote.Ops)
	assert.True(t, h.remote.Exists("/r/precious"))
	assert.Zero(t, rep.Deleted)
}

func TestNothingSeen(t *testing.T) {
	h := newHarness(t)

	rep, err := h.run(t, DefaultPolicy())
	require.NoError(t, err)
	assert.Empty(t, h.local.Ops)
	assert.Empty(t, h.remote.Ops)
	assert.Empty(t, h.events)
	assert.Zero(t, rep.Copied)
}

func TestCopyAndIdempotence(t *testing.T) {
	h := newHarness(t)
	h.local.WriteFile("/l/a/f1", data(5), t0)
	h.local.WriteFile("/l/top", data(7), t0.Add(time.Hour))
	h.local.Mkdir("/l/b", t0)

	rep, err := h.run(t, DefaultPolicy())
	require.NoError(t, err)
	assert.EqualValues(t, 12, rep.Bytes)

	got, err := h.remote.ReadFile("/r/a/f1")
	require.NoError(t, err)
	assert.Equal(t, data(5), got)
	meta, err := h.remote.StatNoFollow(context.Background(), "/r/top")
	require.NoError(t, err)
	assert.True(t, meta.ModTime.Equal(t0.Add(time.Hour)))
	assert.True(t, h.remote.Exists("/r/b"))

	ops := len(h.remote.Ops)
	rep, err = h.run(t, DefaultPolicy())
	require.NoError(t, err)
	assert.Zero(t, rep.Copied)
	assert.Zero(t, rep.Deleted)
	assert.Zero(t, rep.Bytes)
	assert.Len(t, h.remote.Ops, ops)
	assert.Equal(t, 2, rep.Skipped)
}

func TestPullDirection(t *testing.T) {
	h := newHarness(t)
	h.remote.WriteFile("/r/DCIM/img.jpg", data(4), t0)
	h.local.Mkdir("/l", t0)

	p := DefaultPolicy()
	p.LocalToRemote, p.RemoteToLocal = false, true
	rep, err := h.run(t, p)
	require.NoError(t, err)

	got, err := h.local.ReadFile("/l/DCIM/img.jpg")
	require.NoError(t, err)
	assert.Equal(t, data(4), got)
	assert.Contains(t, h.remote.Ops, "pull /r/DCIM/img.jpg /l/DCIM/img.jpg")
	assert.EqualValues(t, 4, rep.Bytes)
}

func TestTwoWay(t *testing.T) {
	p := DefaultPolicy()
	p.RemoteToLocal = true

	t.Run("same minute is unresolved", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/f", data(3), t0.Add(5*time.Second))
		h.remote.WriteFile("/r/f", data(4), t0.Add(40*time.Second))

		rep, err := h.run(t, p)
		require.NoError(t, err)
		assert.Empty(t, h.remote.Ops)
		assert.Empty(t, h.local.Ops)
		assert.Equal(t, 1, rep.Unresolved)
		require.Len(t, h.eventsOf(EventUnresolved), 1)
		assert.Equal(t, "/f", h.eventsOf(EventUnresolved)[0].Key)
	})

	t.Run("newer side wins", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/f", data(3), t0.Add(5*time.Minute))
		h.remote.WriteFile("/r/f", data(4), t0)
		h.local.WriteFile("/l/only-local", data(1), t0)
		h.remote.WriteFile("/r/only-remote", data(2), t0)

		_, err := h.run(t, p)
		require.NoError(t, err)

		got, err := h.remote.ReadFile("/r/f")
		require.NoError(t, err)
		assert.Equal(t, data(3), got)
		assert.True(t, h.remote.Exists("/r/only-local"))
		assert.True(t, h.local.Exists("/l/only-remote"))
	})

	t.Run("remote newer", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/f", data(3), t0)
		h.remote.WriteFile("/r/f", data(4), t0.Add(time.Minute))

		_, err := h.run(t, p)
		require.NoError(t, err)
		got, err := h.local.ReadFile("/l/f")
		require.NoError(t, err)
		assert.Equal(t, data(4), got)
	})
}

func TestOverwriteSameKind(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/f", data(6), t0)
		h.remote.WriteFile("/r/f", data(2), t0)

		_, err := h.run(t, DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, []string{"rm /r/f", "push /l/f /r/f", "touch /r/f"}, h.remote.Ops)
	})

	t.Run("no clobber", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/f", data(6), t0)
		h.remote.WriteFile("/r/f", data(2), t0)

		p := DefaultPolicy()
		p.AllowOverwrite = false
		rep, err := h.run(t, p)
		require.NoError(t, err)
		assert.Empty(t, h.remote.Ops)
		assert.Equal(t, 1, rep.Unresolved)
		assert.Len(t, h.eventsOf(EventRefused), 1)
	})
}

func TestKindConflict(t *testing.T) {
	setup := func(t *testing.T) *harness {
		h := newHarness(t)
		h.local.WriteFile("/l/a/x", data(2), t0)
		h.remote.WriteFile("/r/a", data(9), t0)
		return h
	}

	t.Run("skip by default", func(t *testing.T) {
		h := setup(t)
		rep, err := h.run(t, DefaultPolicy())
		require.NoError(t, err)
		assert.Empty(t, h.remote.Ops)
		assert.Equal(t, 1, rep.Unresolved)
		assert.True(t, h.remote.Exists("/r/a"))
	})

	t.Run("replace not allowed", func(t *testing.T) {
		h := setup(t)
		p := DefaultPolicy()
		p.KindConflict = KindConflictPreferLocal
		rep, err := h.run(t, p)
		require.NoError(t, err)
		assert.Empty(t, h.remote.Ops)
		assert.Equal(t, 1, rep.Unresolved)
		require.Len(t, h.eventsOf(EventRefused), 1)
		assert.Equal(t, "/a", h.eventsOf(EventRefused)[0].Key)
	})

	t.Run("prefer local with force", func(t *testing.T) {
		h := setup(t)
		p := DefaultPolicy()
		p.KindConflict = KindConflictPreferLocal
		p.AllowReplace = true
		_, err := h.run(t, p)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"rm /r/a",
			"mkdir /r/a", "touch /r/a",
			"push /l/a/x /r/a/x", "touch /r/a/x",
		}, h.remote.Ops)
	})

	t.Run("prefer remote without pull", func(t *testing.T) {
		h := setup(t)
		p := DefaultPolicy()
		p.KindConflict = KindConflictPreferRemote
		rep, err := h.run(t, p)
		require.NoError(t, err)
		assert.Empty(t, h.remote.Ops)
		assert.Equal(t, 1, rep.Unresolved)
	})

	t.Run("abort", func(t *testing.T) {
		h := setup(t)
		p := DefaultPolicy()
		p.KindConflict = KindConflictAbort
		_, err := h.run(t, p)
		assert.ErrorIs(t, err, ErrKindConflict)
		assert.Empty(t, h.remote.Ops)
	})
}

func TestReplaceDirectoryWithFile(t *testing.T) {
	h := newHarness(t)
	h.local.WriteFile("/l/a", data(3), t0)
	h.remote.WriteFile("/r/a/x", data(1), t0)
	h.remote.WriteFile("/r/a/sub/y", data(1), t0)

	p := DefaultPolicy()
	p.KindConflict = KindConflictPreferLocal
	p.AllowReplace = true
	_, err := h.run(t, p)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rm /r/a/x",
		"rm /r/a/sub/y",
		"rmdir /r/a/sub",
		"rmdir /r/a",
		"push /l/a /r/a",
		"touch /r/a",
	}, h.remote.Ops)
	got, err := h.remote.ReadFile("/r/a")
	require.NoError(t, err)
	assert.Equal(t, data(3), got)
}

func TestInterruptedTransfer(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/big", data(8), t0)
		h.remote.Mkdir("/r", t0)
		boom := errors.New("cable pulled")
		h.remote.CopyErr["/r/big"] = boom

		_, err := h.run(t, DefaultPolicy())
		require.ErrorIs(t, err, boom)
		assert.False(t, h.remote.Exists("/r/big"))
		assert.Len(t, h.eventsOf(EventInterrupted), 1)
	})

	t.Run("panic", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/big", data(8), t0)
		h.remote.Mkdir("/r", t0)
		h.remote.CopyPanic["/r/big"] = "usb reset"

		assert.PanicsWithValue(t, "usb reset", func() {
			_, _ = h.run(t, DefaultPolicy())
		})
		assert.False(t, h.remote.Exists("/r/big"))
	})

	t.Run("cleanup failure keeps copy error", func(t *testing.T) {
		h := newHarness(t)
		h.local.WriteFile("/l/big", data(8), t0)
		h.remote.Mkdir("/r", t0)
		boom := errors.New("cable pulled")
		h.remote.CopyErr["/r/big"] = boom
		h.remote.FailOps["rm /r/big"] = errors.New("read-only filesystem")

		_, err := h.run(t, DefaultPolicy())
		assert.ErrorIs(t, err, boom)
	})
}

func TestDryRun(t *testing.T) {
	h := newHarness(t)
	h.local.WriteFile("/l/f", data(10), t0)
	h.local.WriteFile("/l/d/g", data(5), t0)
	h.remote.WriteFile("/r/stale", data(1), t0)
	h.remote.WriteFile("/r/d/g", data(1), t0)

	p := DefaultPolicy()
	p.DryRun = true
	p.DeleteMissing = true
	rep, err := h.run(t, p)
	require.NoError(t, err)

	assert.Empty(t, h.remote.Ops)
	assert.Empty(t, h.local.Ops)
	assert.True(t, h.remote.Exists("/r/stale"))
	assert.True(t, rep.DryRun)
	assert.EqualValues(t, 15, rep.Bytes)
	for _, ev := range h.events {
		assert.True(t, ev.DryRun)
	}
	assert.Len(t, h.eventsOf(EventDelete), 1)
}

func TestDelSource(t *testing.T) {
	h := newHarness(t)
	h.local.WriteFile("/l/f", data(4), t0)
	h.local.WriteFile("/l/same", data(2), t0)
	h.remote.WriteFile("/r/same", data(2), t0)

	p := DefaultPolicy()
	p.DelSource = true
	rep, err := h.run(t, p)
	require.NoError(t, err)

	assert.False(t, h.local.Exists("/l/f"))
	assert.False(t, h.local.Exists("/l/same"))
	assert.True(t, h.remote.Exists("/r/f"))
	assert.True(t, h.remote.Exists("/r/same"))
	assert.EqualValues(t, 6, rep.Bytes)
	assert.Len(t, h.eventsOf(EventDeleteSource), 2)
}

func TestPreflight(t *testing.T) {
	h := newHarness(t)
	h.local.WriteFile("/l/f", data(4), t0)
	noDevice := errors.New("no devices/emulators found")
	h.remote.PingErr = noDevice

	_, err := h.run(t, DefaultPolicy())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, noDevice)
	assert.Empty(t, h.remote.Ops)
	assert.Empty(t, h.events)
}

func TestInvalidPolicyRejected(t *testing.T) {
	h := newHarness(t)
	p := DefaultPolicy()
	p.RemoteToLocal = true
	p.DeleteMissing = true
	_, err := h.run(t, p)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestJournal(t *testing.T) {
	db, err := database.NewBoltDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	local, remote := fstest.NewPair()
	local.WriteFile("/l/f", data(4), t0)
	engine := NewEngine(&EngineOptions{LocalFS: local, RemoteFS: remote, Journal: db})

	_, err = engine.Run(context.Background(), "/l", "/r", DefaultPolicy())
	require.NoError(t, err)

	jobs, err := db.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, database.JobDone, jobs[0].Status)
	assert.EqualValues(t, 4, jobs[0].Bytes)
	assert.Equal(t, "/l", jobs[0].LocalRoot)

	events, err := db.Events(jobs[0].ID)
	require.NoError(t, err)
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []string{"mkdir", "copy"}, kinds)
	assert.Equal(t, "Push", events[1].Direction)
}
