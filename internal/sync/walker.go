package sync

import (
	"context"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"adbsync/internal/fs"

	"github.com/bmatcuk/doublestar/v4"
)

// WalkOptions 遍历选项
type WalkOptions struct {
	FollowSymlinks bool
	Excludes       []string
	TimeRange      *TimeRange
}

// Walk 先序遍历 root，目录总是先于其子项输出，子项按名称字节序访问
// 返回的序列是惰性的，调用方停止迭代或 ctx 取消时遍历随之结束
// root 本身不存在时得到空序列
func Walk(ctx context.Context, fsys fs.FileSystem, root string, opts WalkOptions) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		w := &walker{
			ctx:      ctx,
			fsys:     fsys,
			opts:     opts,
			expanded: make(map[string]bool),
		}
		w.walk(root, "", yield)
	}
}

type walker struct {
	ctx  context.Context
	fsys fs.FileSystem
	opts WalkOptions

	// 祖先目录上展开的排除模式，对整棵子树生效
	patterns []string
	// 由 provider 自身 glob 展开得到的排除路径
	expanded map[string]bool
}

// joinPath 拼接 provider 路径
func joinPath(dir, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// escapeMeta 转义目录部分中的 glob 元字符，只让用户的模式部分参与匹配
func escapeMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (w *walker) stat(p string) (*fs.FileMeta, error) {
	if w.opts.FollowSymlinks {
		return w.fsys.StatFollow(w.ctx, p)
	}
	return w.fsys.StatNoFollow(w.ctx, p)
}

// walk 返回 false 表示调用方已经停止迭代
func (w *walker) walk(p, key string, yield func(Entry) bool) bool {
	if w.ctx.Err() != nil {
		return false
	}

	meta, err := w.stat(p)
	if err != nil {
		if key == "" {
			slog.Debug("同步根目录无法访问，视为空", "path", p, "err", err)
		} else {
			slog.Warn("读取元数据失败，跳过", "path", p, "err", err)
		}
		return true
	}

	switch meta.Kind {
	case fs.KindDirectory:
		if !yield(Entry{Key: key, Meta: meta}) {
			return false
		}
		return w.walkChildren(p, key, yield)
	case fs.KindRegular:
		if w.opts.TimeRange.Contains(meta.ModTime) {
			return yield(Entry{Key: key, Meta: meta})
		}
	case fs.KindSymlink:
		// 跟随链接时 stat 已经解析为目标类型，不会走到这里
		if !w.opts.FollowSymlinks && w.opts.TimeRange.Contains(meta.ModTime) {
			return yield(Entry{Key: key, Meta: meta})
		}
	default:
		slog.Info("不支持的文件类型，跳过", "path", p, "kind", meta.Kind)
	}
	return true
}

func (w *walker) walkChildren(dir, key string, yield func(Entry) bool) bool {
	names, err := w.fsys.ListChildren(w.ctx, dir)
	if err != nil {
		slog.Warn("列出目录失败，跳过", "path", dir, "err", err)
		return true
	}
	slices.Sort(names)

	depth := len(w.patterns)
	defer func() { w.patterns = w.patterns[:depth] }()
	for _, pattern := range w.opts.Excludes {
		w.patterns = append(w.patterns, escapeMeta(strings.TrimSuffix(dir, "/"))+"/"+pattern)

		matches, err := w.fsys.ExpandPattern(w.ctx, joinPath(dir, pattern))
		if err != nil {
			slog.Debug("排除模式展开失败", "dir", dir, "pattern", pattern, "err", err)
			continue
		}
		for _, m := range matches {
			w.expanded[m] = true
		}
	}

	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		child := joinPath(dir, name)
		if w.excluded(child, name) {
			slog.Debug("排除", "path", child)
			continue
		}
		if !w.walk(child, key+"/"+name, yield) {
			return false
		}
	}
	return true
}

func (w *walker) excluded(child, name string) bool {
	if w.expanded[child] || slices.Contains(w.opts.Excludes, name) {
		return true
	}
	for _, pattern := range w.patterns {
		if ok, err := doublestar.Match(pattern, child); err == nil && ok {
			return true
		}
	}
	return false
}
