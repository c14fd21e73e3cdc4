package config

import (
	"os"
	"path/filepath"
	"testing"

	syncer "adbsync/internal/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeConfig(t, `
sync:
  pairs:
    - local: /home/u/Pictures
      remote: /sdcard/Pictures
  delete: true
  excludes: ["*.tmp", ".thumbnails"]
  time_range: "230101-"
adb:
  serial: emulator-5554
system:
  journal: /tmp/adbsync.db
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, []PairConfig{{Local: "/home/u/Pictures", Remote: "/sdcard/Pictures"}}, cfg.Sync.Pairs)
	assert.Equal(t, "adb", cfg.ADB.Command, "default kept")
	assert.Equal(t, "emulator-5554", cfg.ADB.Serial)
	assert.Equal(t, "info", cfg.System.LogLevel)
	assert.Equal(t, "skip", cfg.Sync.KindConflict)

	policy, err := cfg.ToPolicy()
	require.NoError(t, err)
	assert.True(t, policy.LocalToRemote)
	assert.False(t, policy.RemoteToLocal)
	assert.True(t, policy.DeleteMissing)
	assert.True(t, policy.AllowOverwrite)
	assert.Equal(t, []string{"*.tmp", ".thumbnails"}, policy.Excludes)
	require.NotNil(t, policy.TimeRange)
	assert.NotNil(t, policy.TimeRange.Start)
	assert.Nil(t, policy.TimeRange.End)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "sync: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "sync:\n  kind_conflict: ask\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "sync:\n  time_range: yesterday\n"))
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = LoadConfig(writeConfig(t, "sync:\n  pairs:\n    - local: /a\n"))
	assert.Error(t, err)
}

func TestToPolicyDirections(t *testing.T) {
	tests := []struct {
		name             string
		reverse, twoWay  bool
		wantL2R, wantR2L bool
	}{
		{"push", false, false, true, false},
		{"pull", true, false, false, true},
		{"two-way", false, true, true, true},
		{"reverse two-way", true, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sync.Reverse = tt.reverse
			cfg.Sync.TwoWay = tt.twoWay
			p, err := cfg.ToPolicy()
			require.NoError(t, err)
			assert.Equal(t, tt.wantL2R, p.LocalToRemote)
			assert.Equal(t, tt.wantR2L, p.RemoteToLocal)
		})
	}
}

func TestToPolicyRules(t *testing.T) {
	cfg := Default()
	cfg.Sync.Force = true
	cfg.Sync.NoClobber = true
	_, err := cfg.ToPolicy()
	assert.ErrorIs(t, err, syncer.ErrInvalidPolicy)

	cfg = Default()
	cfg.Sync.DelSource = true
	p, err := cfg.ToPolicy()
	require.NoError(t, err)
	assert.True(t, p.AllowReplace)

	cfg = Default()
	cfg.Sync.KindConflict = "prefer_remote"
	p, err = cfg.ToPolicy()
	require.NoError(t, err)
	assert.Equal(t, syncer.KindConflictPreferRemote, p.KindConflict)
}
