package adb

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"adbsync/internal/fs"
)

// ErrMalformedListing ls 输出的某一行无法解析 (通常是错误信息)
var ErrMalformedListing = errors.New("unparseable ls -l line")

// ls -l 时间只有分钟精度
const lsTimeLayout = "2006-01-02 15:04"

var (
	lsModeRe = regexp.MustCompile(`^[-bcdlps][-r][-w][-xsS][-r][-w][-xsS][-r][-w][-xtT]`)
	lsDateRe = regexp.MustCompile(` (\d{4}-\d{2}-\d{2} \d{2}:\d{2}) `)
)

// ParseLsLine 把 Android 上 "ls -l" 的一行输出转换为元数据和文件名
// 我们只关心类型、大小和修改时间，其余字段忽略
// 符号链接的文件名在 " -> " 处截断
func ParseLsLine(line string, loc *time.Location) (*fs.FileMeta, string, error) {
	line = strings.TrimRight(line, "\r\n")
	if !lsModeRe.MatchString(line) {
		return nil, "", fmt.Errorf("%w: %q", ErrMalformedListing, line)
	}
	idx := lsDateRe.FindStringSubmatchIndex(line)
	if idx == nil {
		return nil, "", fmt.Errorf("%w: %q", ErrMalformedListing, line)
	}

	// 权限、链接数、用户、组、大小/设备号
	header := strings.Fields(line[:idx[0]])
	if len(header) < 3 {
		return nil, "", fmt.Errorf("%w: %q", ErrMalformedListing, line)
	}

	if loc == nil {
		loc = time.Local
	}
	mtime, err := time.ParseInLocation(lsTimeLayout, line[idx[2]:idx[3]], loc)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q: %v", ErrMalformedListing, line, err)
	}

	meta := &fs.FileMeta{ModTime: mtime, AccessTime: mtime}
	name := line[idx[1]:]

	switch line[0] {
	case '-':
		meta.Kind = fs.KindRegular
		size, err := strconv.ParseInt(header[len(header)-1], 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad size in %q", ErrMalformedListing, line)
		}
		meta.Size = size
	case 'd':
		meta.Kind = fs.KindDirectory
	case 'l':
		meta.Kind = fs.KindSymlink
		if size, err := strconv.ParseInt(header[len(header)-1], 10, 64); err == nil {
			meta.Size = size
		}
		if i := strings.Index(name, " -> "); i >= 0 {
			name = name[:i]
		}
	default:
		meta.Kind = fs.KindUnsupported
	}
	return meta, name, nil
}
