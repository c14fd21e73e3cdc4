package sync

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Report 一次任务的统计结果
type Report struct {
	Bytes   int64 // 传输 (或 dry run 时将要传输) 的普通文件字节数
	Elapsed time.Duration
	DryRun  bool

	Copied     int // 传输的文件和创建的目录
	Deleted    int // 删除和为覆盖而清理的条目
	Skipped    int // 两侧一致的条目
	Unresolved int // 冲突或被策略拒绝的条目
}

// Rate 传输速率 KB/s
func (r *Report) Rate() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Bytes) / 1024 / secs
}

func (r *Report) String() string {
	if r.DryRun {
		return fmt.Sprintf("Total: %d bytes (%s), dry run", r.Bytes, humanize.IBytes(uint64(r.Bytes)))
	}
	return fmt.Sprintf("Total: %.1f KB/s (%s in %.3fs)",
		r.Rate(), humanize.IBytes(uint64(r.Bytes)), r.Elapsed.Seconds())
}

func (r *Report) count(k EventKind) {
	switch k {
	case EventCopy, EventMkdir:
		r.Copied++
	case EventDelete, EventClear:
		r.Deleted++
	case EventSkip:
		r.Skipped++
	case EventUnresolved, EventRefused:
		r.Unresolved++
	}
}
