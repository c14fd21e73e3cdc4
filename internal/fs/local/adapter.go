package local

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"adbsync/internal/fs"

	"github.com/bmatcuk/doublestar/v4"
)

// Adapter 本地文件系统适配器，直接使用系统调用
type Adapter struct{}

// NewAdapter 创建一个新的本地适配器
func NewAdapter() *Adapter {
	return &Adapter{}
}

// toSysPath 将统一路径转换为本地系统路径
// 输入: "/data/docs/file.txt" -> 输出 (Windows): "\data\docs\file.txt"
func toSysPath(p string) string {
	return filepath.FromSlash(p)
}

// wrapErr 统一错误格式，不存在的路径转换为 fs.ErrNotFound
func wrapErr(op, p string, err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("local: %s %q: %w", op, p, fs.ErrNotFound)
	}
	return fmt.Errorf("local: %s %q: %w", op, p, err)
}

// Ping 本地文件系统总是可用
func (a *Adapter) Ping(ctx context.Context) error {
	return nil
}

// ListChildren 列出目录内容
func (a *Adapter) ListChildren(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(toSysPath(dir))
	if err != nil {
		return nil, wrapErr("readdir", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// StatFollow 跟随符号链接
func (a *Adapter) StatFollow(ctx context.Context, p string) (*fs.FileMeta, error) {
	info, err := os.Stat(toSysPath(p))
	if err != nil {
		return nil, wrapErr("stat", p, err)
	}
	return toMeta(info), nil
}

// StatNoFollow 不跟随符号链接
func (a *Adapter) StatNoFollow(ctx context.Context, p string) (*fs.FileMeta, error) {
	info, err := os.Lstat(toSysPath(p))
	if err != nil {
		return nil, wrapErr("lstat", p, err)
	}
	return toMeta(info), nil
}

func toMeta(info os.FileInfo) *fs.FileMeta {
	meta := &fs.FileMeta{
		ModTime:    info.ModTime(),
		AccessTime: accessTime(info),
	}
	mode := info.Mode()
	switch {
	case mode.IsDir():
		meta.Kind = fs.KindDirectory
	case mode.IsRegular():
		meta.Kind = fs.KindRegular
		meta.Size = info.Size()
	case mode&os.ModeSymlink != 0:
		meta.Kind = fs.KindSymlink
		meta.Size = info.Size()
	default:
		meta.Kind = fs.KindUnsupported
	}
	return meta
}

// DeleteEntry 删除文件或符号链接
func (a *Adapter) DeleteEntry(ctx context.Context, p string) error {
	if err := os.Remove(toSysPath(p)); err != nil {
		return wrapErr("unlink", p, err)
	}
	return nil
}

// DeleteEmptyDir 删除空目录，非空目录会失败
func (a *Adapter) DeleteEmptyDir(ctx context.Context, p string) error {
	info, err := os.Lstat(toSysPath(p))
	if err != nil {
		return wrapErr("rmdir", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local: rmdir %q: not a directory", p)
	}
	if err := os.Remove(toSysPath(p)); err != nil {
		return wrapErr("rmdir", p, err)
	}
	return nil
}

// CreateDirTree 递归创建目录
func (a *Adapter) CreateDirTree(ctx context.Context, p string) error {
	if err := os.MkdirAll(toSysPath(p), 0755); err != nil {
		return wrapErr("mkdir", p, err)
	}
	return nil
}

// SetTimes 修改时间 (双向同步依赖修改时间)
func (a *Adapter) SetTimes(ctx context.Context, p string, atime, mtime time.Time) error {
	if err := os.Chtimes(toSysPath(p), atime, mtime); err != nil {
		return wrapErr("utime", p, err)
	}
	return nil
}

// ExpandPattern 使用 doublestar 展开本地 glob
func (a *Adapter) ExpandPattern(ctx context.Context, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(toSysPath(pattern))
	if err != nil {
		return nil, fmt.Errorf("local: glob %q: %w", pattern, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.ToSlash(m))
	}
	sort.Strings(out)
	return out, nil
}
