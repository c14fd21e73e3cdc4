package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"adbsync/internal/fs"
)

// ErrKindConflict 同一路径一侧是目录另一侧不是，且策略要求终止
var ErrKindConflict = errors.New("directory and non-directory at the same path")

// 两侧的下标：方向 i 的源端是 i，目标端是 1-i
const (
	sideLocal  = 0
	sideRemote = 1
)

func (d Direction) src() int { return int(d) }
func (d Direction) dst() int { return 1 - int(d) }

var directions = [2]Direction{DirPush, DirPull}

// Job 一次同步任务的临时状态，由 Engine 独占
type Job struct {
	policy Policy
	roots  [2]string
	fss    [2]fs.FileSystem
	remote fs.Remote

	diff DiffResult
	// only[side] 仅在该侧存在的条目，方向 d 的源端列表是 only[d.src()]，目标端是 only[d.dst()]
	only [2]*[]Entry

	sink   func(Event)
	report Report
	start  time.Time
}

func newJob(local fs.FileSystem, remote fs.Remote, localRoot, remoteRoot string, policy Policy, sink func(Event)) *Job {
	return &Job{
		policy: policy,
		roots:  [2]string{localRoot, remoteRoot},
		fss:    [2]fs.FileSystem{local, remote},
		remote: remote,
		sink:   sink,
		report: Report{DryRun: policy.DryRun},
		start:  time.Now(),
	}
}

func (j *Job) enabled(d Direction) bool {
	if d == DirPush {
		return j.policy.LocalToRemote
	}
	return j.policy.RemoteToLocal
}

// path 把 Key 转换为某一侧的完整路径
func (j *Job) path(side int, key string) string {
	if key == "" {
		return j.roots[side]
	}
	return strings.TrimSuffix(j.roots[side], "/") + key
}

func (j *Job) emit(ev Event) {
	ev.DryRun = j.policy.DryRun
	j.report.count(ev.Kind)

	attrs := []any{"dir", ev.Direction, "path", ev.Path}
	if ev.Size > 0 {
		attrs = append(attrs, "size", ev.Size)
	}
	if ev.Reason != "" {
		attrs = append(attrs, "reason", ev.Reason)
	}
	if ev.DryRun {
		attrs = append(attrs, "dry_run", true)
	}
	switch ev.Kind {
	case EventUnresolved:
		slog.Warn("无法自动解决", attrs...)
	case EventSkip:
		slog.Debug("已同步，跳过", attrs...)
	case EventRefused:
		slog.Info("策略禁止，保持原状", attrs...)
	default:
		slog.Info(ev.Direction.String()+"-"+ev.Kind.String(), attrs...)
	}

	if j.sink != nil {
		j.sink(ev)
	}
}

// ScanAndDiff 遍历两侧并计算差异
func (j *Job) ScanAndDiff(ctx context.Context) error {
	slog.Info("扫描并比较中...", "local", j.roots[sideLocal], "remote", j.roots[sideRemote])
	opts := WalkOptions{
		FollowSymlinks: j.policy.CopyLinks,
		Excludes:       j.policy.Excludes,
		TimeRange:      j.policy.TimeRange,
	}
	j.diff = Diff(
		Walk(ctx, j.fss[sideLocal], j.roots[sideLocal], opts),
		Walk(ctx, j.fss[sideRemote], j.roots[sideRemote], opts),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.diff.Empty() {
		slog.Warn("No files seen. User error?")
	}
	j.only = [2]*[]Entry{&j.diff.LeftOnly, &j.diff.RightOnly}
	slog.Info("比较完成",
		"local_only", len(j.diff.LeftOnly),
		"common", len(j.diff.Common),
		"remote_only", len(j.diff.RightOnly),
	)
	return nil
}

// Diff 返回 ScanAndDiff 的结果
func (j *Job) Diff() *DiffResult {
	return &j.diff
}

// remove 删除目标端的一个条目，目录使用 rmdir
func (j *Job) remove(ctx context.Context, d Direction, e Entry, kind EventKind, reason string) error {
	p := j.path(d.dst(), e.Key)
	j.emit(Event{Kind: kind, Direction: d, Key: e.Key, Path: p, Size: e.Meta.Size, Reason: reason})
	if j.policy.DryRun {
		return nil
	}
	fsys := j.fss[d.dst()]
	var err error
	if e.Meta.IsDir() {
		err = fsys.DeleteEmptyDir(ctx, p)
	} else {
		err = fsys.DeleteEntry(ctx, p)
	}
	if err != nil {
		return fmt.Errorf("%s-%s %q: %w", d, kind, p, err)
	}
	return nil
}

// PerformDeletions 单向同步时删除目标端多余的条目，逆序保证子项先于父目录删除
func (j *Job) PerformDeletions(ctx context.Context) error {
	if !j.policy.DeleteMissing {
		return nil
	}
	for _, d := range directions {
		if !j.enabled(d) || j.enabled(1-d) {
			continue
		}
		victims := *j.only[d.dst()]
		if len(*j.only[d.src()]) == 0 && len(j.diff.Common) == 0 {
			// 两侧没有任何共同点，大概率是路径写错了
			slog.Error("Cowardly refusing to delete everything.", "dir", d, "pending", len(victims))
			continue
		}
		for i := len(victims) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := j.remove(ctx, d, victims[i], EventDelete, "missing on source"); err != nil {
				return err
			}
		}
		*j.only[d.dst()] = nil
	}
	return nil
}

// prune 从某一侧的待处理列表中移除 key 的全部子孙并返回它们
func (j *Job) prune(side int, key string) []Entry {
	prefix := key + "/"
	var pruned, kept []Entry
	for _, e := range *j.only[side] {
		if strings.HasPrefix(e.Key, prefix) {
			pruned = append(pruned, e)
		} else {
			kept = append(kept, e)
		}
	}
	*j.only[side] = kept
	return pruned
}

// unresolved 记录冲突，同时放弃该路径下两侧的全部子项
func (j *Job) unresolved(c CommonEntry, kind EventKind, reason string) {
	j.emit(Event{Kind: kind, Key: c.Key, Path: j.path(sideLocal, c.Key), Reason: reason})
	if c.Local.IsDir() != c.Remote.IsDir() {
		for side := range j.only {
			for _, e := range j.prune(side, c.Key) {
				slog.Debug("父路径冲突，跳过", "key", e.Key)
			}
		}
	}
}

// chooseDirection 决定一个共同条目的传输方向，ok 为 false 表示不处理
func (j *Job) chooseDirection(c CommonEntry) (d Direction, ok bool, err error) {
	l2r, r2l := j.policy.LocalToRemote, j.policy.RemoteToLocal
	lDir, rDir := c.Local.IsDir(), c.Remote.IsDir()

	switch {
	case lDir && rDir:
		return 0, false, nil
	case lDir || rDir:
		switch j.policy.KindConflict {
		case KindConflictAbort:
			return 0, false, fmt.Errorf("%w: %s", ErrKindConflict, c.Key)
		case KindConflictPreferLocal:
			if !l2r {
				j.unresolved(c, EventUnresolved, "kind conflict, push disabled")
				return 0, false, nil
			}
			r2l = false
		case KindConflictPreferRemote:
			if !r2l {
				j.unresolved(c, EventUnresolved, "kind conflict, pull disabled")
				return 0, false, nil
			}
			l2r = false
		default:
			j.unresolved(c, EventUnresolved, "kind conflict")
			return 0, false, nil
		}
	case c.Local.Size == c.Remote.Size && !j.policy.DelSource:
		j.emit(Event{Kind: EventSkip, Key: c.Key, Path: j.path(sideLocal, c.Key), Size: c.Local.Size})
		return 0, false, nil
	case l2r && r2l:
		// 设备上的 ls 只有分钟精度
		lm := c.Local.ModTime.Truncate(time.Minute)
		rm := c.Remote.ModTime.Truncate(time.Minute)
		if lm.After(rm) {
			r2l = false
		} else if lm.Before(rm) {
			l2r = false
		}
	}

	if l2r && r2l && !j.policy.DelSource {
		j.unresolved(c, EventUnresolved, "same modification minute")
		return 0, false, nil
	}
	if l2r {
		return DirPush, true, nil
	}
	return DirPull, true, nil
}

// PerformOverwrites 处理两侧都存在的条目：选择方向、清理目标端，并加入待复制列表
func (j *Job) PerformOverwrites(ctx context.Context) error {
	var resolved [2][]Entry
	for _, c := range j.diff.Common {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, ok, err := j.chooseDirection(c)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		srcMeta, dstMeta := c.Local, c.Remote
		if d == DirPull {
			srcMeta, dstMeta = c.Remote, c.Local
		}
		if srcMeta.IsDir() != dstMeta.IsDir() && !j.policy.AllowReplace {
			j.unresolved(c, EventRefused, "would have to replace, use --force to allow this")
			continue
		}
		if !j.policy.AllowOverwrite {
			j.unresolved(c, EventRefused, "would have to overwrite, which --no-clobber forbids")
			continue
		}

		if dstMeta.IsDir() {
			for _, child := range slices.Backward(j.prune(d.dst(), c.Key)) {
				if err := j.remove(ctx, d, child, EventClear, "replaced by file"); err != nil {
					return err
				}
			}
		}
		if err := j.remove(ctx, d, Entry{Key: c.Key, Meta: dstMeta}, EventClear, "conflicting"); err != nil {
			return err
		}
		resolved[d] = append(resolved[d], Entry{Key: c.Key, Meta: srcMeta})
	}

	for _, d := range directions {
		if len(resolved[d]) == 0 {
			continue
		}
		list := j.only[d.src()]
		*list = append(*list, resolved[d]...)
		slices.SortStableFunc(*list, compareKey)
	}
	return nil
}
