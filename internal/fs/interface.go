package fs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 元数据查询时路径不存在
var ErrNotFound = errors.New("no such file or directory")

// Kind 文件类型
type Kind int

const (
	KindUnsupported Kind = iota // 设备文件、FIFO、socket 等
	KindDirectory
	KindRegular
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "dir"
	case KindRegular:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unsupported"
	}
}

// FileMeta 文件元数据
type FileMeta struct {
	Kind       Kind
	Size       int64     // 仅对普通文件有意义
	ModTime    time.Time // 修改时间
	AccessTime time.Time // 访问时间
}

// IsDir 是否为目录
func (m *FileMeta) IsDir() bool {
	return m.Kind == KindDirectory
}

// FileSystem 是对本地磁盘和设备端文件系统的统一抽象
// 所有路径都使用 "/" 作为分隔符
type FileSystem interface {
	// Ping 连通性检查，失败时同步任务不会开始
	Ping(ctx context.Context) error

	// ListChildren 列出目录下的子项名称 (不含 "." 和 "..")
	// 实现可以顺便缓存子项的元数据
	ListChildren(ctx context.Context, dir string) ([]string, error)

	// StatFollow 获取元数据，跟随符号链接
	StatFollow(ctx context.Context, path string) (*FileMeta, error)

	// StatNoFollow 获取元数据，不跟随符号链接
	StatNoFollow(ctx context.Context, path string) (*FileMeta, error)

	// DeleteEntry 删除非目录项
	DeleteEntry(ctx context.Context, path string) error

	// DeleteEmptyDir 删除空目录
	DeleteEmptyDir(ctx context.Context, path string) error

	// CreateDirTree 创建目录及缺失的父目录
	CreateDirTree(ctx context.Context, path string) error

	// SetTimes 设置访问时间和修改时间
	SetTimes(ctx context.Context, path string, atime, mtime time.Time) error

	// ExpandPattern 按该文件系统自己的 glob 语义展开模式
	ExpandPattern(ctx context.Context, pattern string) ([]string, error)
}

// Remote 设备端文件系统，额外负责两个方向的整文件传输
type Remote interface {
	FileSystem

	// Push 本地 -> 设备
	Push(ctx context.Context, localSrc, remoteDst string) error

	// Pull 设备 -> 本地
	Pull(ctx context.Context, remoteSrc, localDst string) error
}

// CacheResetter 由带元数据缓存的实现提供，每个同步任务开始前调用
type CacheResetter interface {
	ResetCache()
}

// IsNotFound 判断错误是否表示路径不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
