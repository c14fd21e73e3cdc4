package adb

import (
	"testing"
	"time"

	"adbsync/internal/fs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLsLine(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name     string
		line     string
		wantKind fs.Kind
		wantSize int64
		wantName string
		wantTime time.Time
	}{
		{
			name:     "regular file",
			line:     "-rw-rw---- 1 root sdcard_rw 12345 2023-05-06 07:08 photo.jpg",
			wantKind: fs.KindRegular,
			wantSize: 12345,
			wantName: "photo.jpg",
			wantTime: time.Date(2023, 5, 6, 7, 8, 0, 0, loc),
		},
		{
			name:     "file name with spaces",
			line:     "-rw-rw---- 1 u0_a1 u0_a1 7 2021-01-02 03:04 my  file.txt",
			wantKind: fs.KindRegular,
			wantSize: 7,
			wantName: "my  file.txt",
			wantTime: time.Date(2021, 1, 2, 3, 4, 0, 0, loc),
		},
		{
			name:     "directory without link count",
			line:     "drwxrwx--x root sdcard_rw 2020-12-31 23:59 DCIM",
			wantKind: fs.KindDirectory,
			wantName: "DCIM",
			wantTime: time.Date(2020, 12, 31, 23, 59, 0, 0, loc),
		},
		{
			name:     "symlink",
			line:     "lrwxrwxrwx 1 root root 21 2019-07-08 09:10 sdcard -> /storage/self/primary",
			wantKind: fs.KindSymlink,
			wantSize: 21,
			wantName: "sdcard",
			wantTime: time.Date(2019, 7, 8, 9, 10, 0, 0, loc),
		},
		{
			name:     "character device",
			line:     "crw-rw-rw- 1 root root 1, 3 2019-07-08 09:10 null",
			wantKind: fs.KindUnsupported,
			wantName: "null",
			wantTime: time.Date(2019, 7, 8, 9, 10, 0, 0, loc),
		},
		{
			name:     "sticky dir",
			line:     "drwxrwxrwt 2 root root 4096 2022-02-02 02:02 tmp",
			wantKind: fs.KindDirectory,
			wantName: "tmp",
			wantTime: time.Date(2022, 2, 2, 2, 2, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, name, err := ParseLsLine(tt.line, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, meta.Kind)
			assert.Equal(t, tt.wantSize, meta.Size)
			assert.Equal(t, tt.wantName, name)
			assert.True(t, meta.ModTime.Equal(tt.wantTime), "mtime %v", meta.ModTime)
			assert.True(t, meta.AccessTime.Equal(meta.ModTime))
		})
	}
}

func TestParseLsLineMalformed(t *testing.T) {
	lines := []string{
		"ls: /sdcard/missing: No such file or directory",
		"total 24",
		"",
		"-rw-rw---- 1 root root notasize 2023-05-06 07:08 f",
		"-rw-rw---- 2023-05-06 07:08 f",
	}
	for _, line := range lines {
		_, _, err := ParseLsLine(line, time.UTC)
		assert.ErrorIs(t, err, ErrMalformedListing, "line %q", line)
	}
}

func TestQuoteArgument(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteArgument("plain"))
	assert.Equal(t, `"a \"b\" \$c \`+"`"+`d\` + "`" + ` e\\f"`, QuoteArgument("a \"b\" $c `d` e\\f"))
}
