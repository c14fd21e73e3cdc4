package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"adbsync/internal/fs"
	syncer "adbsync/internal/sync"
)

// FixPath 仿照 rsync 的路径规则：SRC 不以 "/" 结尾时，把 SRC 的最后一级追加到 DST
// 不会追加 "." 或 ".."
func FixPath(src, dst string) (string, string) {
	var suffix string
	if pos := strings.LastIndex(src, "/"); pos >= 0 {
		if !strings.HasSuffix(src, "/") {
			suffix = src[pos:]
		}
	} else {
		suffix = "/" + src
	}
	if suffix != "/." && suffix != "/.." {
		dst += suffix
	}
	return src, dst
}

// ExpandWildcards 包含通配符时交给 fsys 展开，否则原样返回
func ExpandWildcards(ctx context.Context, fsys fs.FileSystem, pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := fsys.ExpandPattern(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("expand %q: %w", pattern, err)
	}
	return matches, nil
}

// buildPairs 由命令行的 SRC... DST 生成同步路径
// 反向模式下 SRC 是设备路径，只在设备一侧展开通配符
func buildPairs(ctx context.Context, remote fs.FileSystem, sources []string, dest string, reverse bool) ([]syncer.Pair, error) {
	var pairs []syncer.Pair
	dest = filepath.ToSlash(dest)
	if !reverse {
		for _, src := range sources {
			src, dst := FixPath(filepath.ToSlash(src), dest)
			pairs = append(pairs, syncer.Pair{Local: src, Remote: dst})
		}
		return pairs, nil
	}

	for _, pattern := range sources {
		matches, err := ExpandWildcards(ctx, remote, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			src, dst := FixPath(m, dest)
			pairs = append(pairs, syncer.Pair{Local: dst, Remote: src})
		}
	}
	return pairs, nil
}
