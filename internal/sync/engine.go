package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"adbsync/internal/database"
	"adbsync/internal/fs"

	"golang.org/x/sync/errgroup"
)

// ErrNotConnected 任务开始前的连通性检查失败
var ErrNotConnected = errors.New("device not connected or not working")

// EngineOptions 初始化选项
type EngineOptions struct {
	LocalFS  fs.FileSystem
	RemoteFS fs.Remote
	// Journal 为 nil 时不记录任务日志
	Journal *database.DB
	// OnEvent 每条事件的回调，可选
	OnEvent func(Event)
}

type Engine struct {
	opts *EngineOptions
}

func NewEngine(opts *EngineOptions) *Engine {
	return &Engine{opts: opts}
}

// Ping 并发检查两侧是否可用
func (e *Engine) Ping(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.opts.LocalFS.Ping(gctx); err != nil {
			return fmt.Errorf("local: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.opts.RemoteFS.Ping(gctx); err != nil {
			return fmt.Errorf("remote: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

// Run 执行一次完整的同步任务：扫描比较、删除、处理冲突、复制
// 任何一步出错都会立即终止，已经完成的操作不会回滚
func (e *Engine) Run(ctx context.Context, localRoot, remoteRoot string, policy Policy) (*Report, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	policy.Normalize()

	if err := e.Ping(ctx); err != nil {
		return nil, err
	}

	// 元数据缓存只在一个任务内有效
	for _, fsys := range []fs.FileSystem{e.opts.LocalFS, e.opts.RemoteFS} {
		if r, ok := fsys.(fs.CacheResetter); ok {
			r.ResetCache()
		}
	}

	record := e.beginJournal(localRoot, remoteRoot, policy)
	job := newJob(e.opts.LocalFS, e.opts.RemoteFS, localRoot, remoteRoot, policy, func(ev Event) {
		if e.opts.OnEvent != nil {
			e.opts.OnEvent(ev)
		}
		e.journalEvent(record, ev)
	})

	err := runPhases(ctx, job)
	rep := job.Report()
	e.finishJournal(record, rep, err)
	return rep, err
}

func runPhases(ctx context.Context, job *Job) error {
	phases := []func(context.Context) error{
		job.ScanAndDiff,
		job.PerformDeletions,
		job.PerformOverwrites,
		job.PerformCopies,
	}
	for _, phase := range phases {
		if err := phase(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) beginJournal(localRoot, remoteRoot string, policy Policy) *database.JobRecord {
	if e.opts.Journal == nil {
		return nil
	}
	rec := &database.JobRecord{LocalRoot: localRoot, RemoteRoot: remoteRoot, DryRun: policy.DryRun}
	if err := e.opts.Journal.BeginJob(rec); err != nil {
		slog.Error("写入任务记录失败", "err", err)
		return nil
	}
	slog.Debug("任务记录已创建", "job", rec.ID)
	return rec
}

func (e *Engine) journalEvent(rec *database.JobRecord, ev Event) {
	if rec == nil {
		return
	}
	err := e.opts.Journal.AppendEvent(rec.ID, &database.EventRecord{
		Kind:      ev.Kind.String(),
		Direction: ev.Direction.String(),
		Key:       ev.Key,
		Path:      ev.Path,
		Size:      ev.Size,
		DryRun:    ev.DryRun,
		Reason:    ev.Reason,
	})
	if err != nil {
		slog.Error("写入事件失败", "job", rec.ID, "err", err)
	}
}

func (e *Engine) finishJournal(rec *database.JobRecord, rep *Report, runErr error) {
	if rec == nil {
		return
	}
	rec.Bytes = rep.Bytes
	rec.Copied = rep.Copied
	rec.Deleted = rep.Deleted
	rec.Skipped = rep.Skipped
	rec.Unresolved = rep.Unresolved
	if err := e.opts.Journal.FinishJob(rec, runErr); err != nil {
		slog.Error("更新任务记录失败", "job", rec.ID, "err", err)
	}
}
