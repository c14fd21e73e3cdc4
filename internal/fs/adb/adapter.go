package adb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"adbsync/internal/fs"
)

// touch 使用的时间格式 [[CC]YY]MMDDhhmm[.ss]
const touchTimeLayout = "200601021504.05"

// Adapter 实现了 fs.Remote 接口，通过 adb shell 操作设备上的文件
type Adapter struct {
	client *Client
	loc    *time.Location // 设备 ls 输出使用的时区

	// 元数据缓存，ListChildren 时填充，避免逐个 stat 的往返
	// 只在一个同步任务内有效，任务开始时由 ResetCache 清空
	lstatCache map[string]*fs.FileMeta
	statCache  map[string]*fs.FileMeta
}

// NewAdapter 创建适配器实例，loc 为 nil 时使用本地时区
func NewAdapter(client *Client, loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.Local
	}
	return &Adapter{
		client:     client,
		loc:        loc,
		lstatCache: make(map[string]*fs.FileMeta),
		statCache:  make(map[string]*fs.FileMeta),
	}
}

// ResetCache 清空元数据缓存
func (a *Adapter) ResetCache() {
	a.lstatCache = make(map[string]*fs.FileMeta)
	a.statCache = make(map[string]*fs.FileMeta)
}

func (a *Adapter) forget(p string) {
	delete(a.lstatCache, p)
	delete(a.statCache, p)
}

// childPath 拼接子路径，dir 为 "/" 时不产生 "//"
func childPath(dir, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// mutate 执行会修改设备状态的 shell 命令，退出码非 0 视为失败
func (a *Adapter) mutate(ctx context.Context, op, p, command string) error {
	a.forget(p)
	if _, err := a.client.Shell(ctx, command); err != nil {
		return fmt.Errorf("adb: %s %q: %w", op, p, err)
	}
	return nil
}

// ListChildren 列出目录内容，同时缓存每个子项的元数据
func (a *Adapter) ListChildren(ctx context.Context, dir string) ([]string, error) {
	res, err := a.client.Shell(ctx, "ls -al "+QuoteArgument(strings.TrimSuffix(dir, "/")+"/"))
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("adb: ls %q: %w", dir, err)
	}

	var names []string
	for _, line := range res.Lines() {
		if strings.HasPrefix(line, "total ") {
			continue
		}
		meta, name, perr := ParseLsLine(line, a.loc)
		if perr != nil {
			slog.Debug("跳过无法解析的 ls 输出", "dir", dir, "line", line)
			continue
		}
		if name == "" {
			slog.Error("ls 输出缺少文件名", "dir", dir, "line", line)
			continue
		}
		if name == "." || name == ".." {
			continue
		}
		a.lstatCache[childPath(dir, name)] = meta
		names = append(names, name)
	}

	if exitErr != nil && len(names) == 0 {
		return nil, fmt.Errorf("adb: ls %q: %w", dir, exitErr)
	}
	return names, nil
}

// StatNoFollow 优先使用缓存
func (a *Adapter) StatNoFollow(ctx context.Context, p string) (*fs.FileMeta, error) {
	if meta, ok := a.lstatCache[p]; ok {
		return meta, nil
	}
	meta, err := a.stat(ctx, p, "ls -ald ")
	if err != nil {
		return nil, err
	}
	a.lstatCache[p] = meta
	return meta, nil
}

// StatFollow 缓存中的非链接项可以直接使用，链接需要重新查询目标
func (a *Adapter) StatFollow(ctx context.Context, p string) (*fs.FileMeta, error) {
	if meta, ok := a.lstatCache[p]; ok && meta.Kind != fs.KindSymlink {
		return meta, nil
	}
	if meta, ok := a.statCache[p]; ok {
		return meta, nil
	}
	meta, err := a.stat(ctx, p, "ls -aldL ")
	if err != nil {
		return nil, err
	}
	a.statCache[p] = meta
	return meta, nil
}

func (a *Adapter) stat(ctx context.Context, p, command string) (*fs.FileMeta, error) {
	res, err := a.client.Shell(ctx, command+QuoteArgument(p))
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("adb: stat %q: %w", p, err)
	}
	for _, line := range res.Lines() {
		if strings.HasPrefix(line, "total ") {
			continue
		}
		meta, _, perr := ParseLsLine(line, a.loc)
		if perr != nil {
			// "ls: xxx: No such file or directory" 之类的错误信息
			return nil, fmt.Errorf("adb: stat %q: %w (%v)", p, fs.ErrNotFound, perr)
		}
		return meta, nil
	}
	return nil, fmt.Errorf("adb: stat %q: %w", p, fs.ErrNotFound)
}

// DeleteEntry 删除文件
func (a *Adapter) DeleteEntry(ctx context.Context, p string) error {
	return a.mutate(ctx, "rm", p, "rm "+QuoteArgument(p))
}

// DeleteEmptyDir 删除空目录
func (a *Adapter) DeleteEmptyDir(ctx context.Context, p string) error {
	return a.mutate(ctx, "rmdir", p, "rmdir "+QuoteArgument(p))
}

// CreateDirTree 创建目录
func (a *Adapter) CreateDirTree(ctx context.Context, p string) error {
	return a.mutate(ctx, "mkdir", p, "mkdir -p "+QuoteArgument(p))
}

// SetTimes 分两次 touch 设置修改时间和访问时间
func (a *Adapter) SetTimes(ctx context.Context, p string, atime, mtime time.Time) error {
	mt := mtime.In(a.loc).Format(touchTimeLayout)
	if err := a.mutate(ctx, "touch", p, "touch -mt "+mt+" "+QuoteArgument(p)); err != nil {
		return err
	}
	at := atime.In(a.loc).Format(touchTimeLayout)
	return a.mutate(ctx, "touch", p, "touch -at "+at+" "+QuoteArgument(p))
}

// ExpandPattern 交给设备端 shell 展开，模式本身不能加引号
func (a *Adapter) ExpandPattern(ctx context.Context, pattern string) ([]string, error) {
	res, err := a.client.Shell(ctx, `for p in `+pattern+`; do echo "$p"; done`)
	if err != nil {
		return nil, fmt.Errorf("adb: glob %q: %w", pattern, err)
	}
	return res.Lines(), nil
}

// Push 本地文件推送到设备
func (a *Adapter) Push(ctx context.Context, localSrc, remoteDst string) error {
	a.forget(remoteDst)
	if _, err := a.client.Run(ctx, "push", filepath.FromSlash(localSrc), remoteDst); err != nil {
		return fmt.Errorf("adb: push %q -> %q: %w", localSrc, remoteDst, err)
	}
	return nil
}

// Pull 从设备拉取文件到本地
func (a *Adapter) Pull(ctx context.Context, remoteSrc, localDst string) error {
	if _, err := a.client.Run(ctx, "pull", remoteSrc, filepath.FromSlash(localDst)); err != nil {
		return fmt.Errorf("adb: pull %q -> %q: %w", remoteSrc, localDst, err)
	}
	return nil
}
