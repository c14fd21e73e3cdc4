package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adbsync/internal/fs"
)

// transfer 按方向调用 adb push 或 pull
func (j *Job) transfer(ctx context.Context, d Direction, src, dst string) error {
	if d == DirPush {
		return j.remote.Push(ctx, src, dst)
	}
	return j.remote.Pull(ctx, src, dst)
}

// PerformCopies 按方向依次复制源端独有的条目，列表有序保证父目录先创建
func (j *Job) PerformCopies(ctx context.Context) error {
	for _, d := range directions {
		if !j.enabled(d) {
			continue
		}
		for _, e := range *j.only[d.src()] {
			if err := ctx.Err(); err != nil {
				return err
			}
			srcPath := j.path(d.src(), e.Key)
			dstPath := j.path(d.dst(), e.Key)

			if e.Meta.IsDir() {
				j.emit(Event{Kind: EventMkdir, Direction: d, Key: e.Key, Path: dstPath})
				if !j.policy.DryRun {
					if err := j.fss[d.dst()].CreateDirTree(ctx, dstPath); err != nil {
						return fmt.Errorf("%s-mkdir %q: %w", d, dstPath, err)
					}
				}
			} else if err := j.guardedCopy(ctx, d, e, srcPath, dstPath); err != nil {
				return err
			}

			if !j.policy.DryRun {
				if err := j.fss[d.dst()].SetTimes(ctx, dstPath, e.Meta.AccessTime, e.Meta.ModTime); err != nil {
					return fmt.Errorf("%s-touch %q: %w", d, dstPath, err)
				}
			}
		}
	}
	return nil
}

// guardedCopy 传输单个文件，失败或 panic 时删除目标端的残留文件，再把原始错误继续抛出
func (j *Job) guardedCopy(ctx context.Context, d Direction, e Entry, srcPath, dstPath string) (err error) {
	defer func() {
		r := recover()
		if err == nil && r == nil {
			return
		}
		j.emit(Event{Kind: EventInterrupted, Direction: d, Key: e.Key, Path: dstPath, Reason: fmt.Sprint(firstNonNil(r, err))})
		if !j.policy.DryRun {
			// ctx 可能已经取消，清理仍然要执行
			cleanupCtx := context.WithoutCancel(ctx)
			if cerr := j.fss[d.dst()].DeleteEntry(cleanupCtx, dstPath); cerr != nil && !fs.IsNotFound(cerr) {
				slog.Error("清理中断的传输失败", "path", dstPath, "err", cerr)
			}
		}
		if r != nil {
			panic(r)
		}
	}()

	j.emit(Event{Kind: EventCopy, Direction: d, Key: e.Key, Path: srcPath + " -> " + dstPath, Size: e.Meta.Size})
	if !j.policy.DryRun {
		if err = j.transfer(ctx, d, srcPath, dstPath); err != nil {
			return fmt.Errorf("%s %q -> %q: %w", d, srcPath, dstPath, err)
		}
		if j.policy.DelSource {
			j.emit(Event{Kind: EventDeleteSource, Direction: d, Key: e.Key, Path: srcPath})
			if err = j.fss[d.src()].DeleteEntry(ctx, srcPath); err != nil {
				return fmt.Errorf("%s-delete-source %q: %w", d, srcPath, err)
			}
		}
	}
	if e.Meta.Kind == fs.KindRegular {
		j.report.Bytes += e.Meta.Size
	}
	return nil
}

func firstNonNil(r any, err error) any {
	if r != nil {
		return r
	}
	return err
}

// Report 结束计时并输出统计
func (j *Job) Report() *Report {
	rep := j.report
	rep.Elapsed = time.Since(j.start)
	slog.Info(rep.String(),
		"copied", rep.Copied,
		"deleted", rep.Deleted,
		"skipped", rep.Skipped,
		"unresolved", rep.Unresolved,
	)
	return &rep
}
