package sync

import (
	"adbsync/internal/fs"
)

// Entry 遍历输出的基本单元，Key 是相对同步根目录的路径
// 根目录自身的 Key 为 ""，子项为 "/name"，孙子项为 "/name/child"
type Entry struct {
	Key  string
	Meta *fs.FileMeta
}

// CommonEntry 两侧都存在的路径
type CommonEntry struct {
	Key    string
	Local  *fs.FileMeta
	Remote *fs.FileMeta
}

// DiffResult 差异计算结果，三个列表均按 Key 升序
type DiffResult struct {
	LeftOnly  []Entry
	Common    []CommonEntry
	RightOnly []Entry
}

// Empty 两侧都没有任何条目
func (d *DiffResult) Empty() bool {
	return len(d.LeftOnly) == 0 && len(d.Common) == 0 && len(d.RightOnly) == 0
}

// Direction 传输方向
type Direction int

const (
	DirPush Direction = iota // 本地 -> 设备
	DirPull                  // 设备 -> 本地
)

func (d Direction) String() string {
	if d == DirPush {
		return "Push"
	}
	return "Pull"
}

// EventKind 同步过程中产生的事件类型
type EventKind int

const (
	EventDelete       EventKind = iota // 删除目标端多余的条目
	EventClear                         // 为覆盖/替换清理目标端
	EventMkdir                         // 创建目录
	EventCopy                          // 传输文件
	EventDeleteSource                  // 传输后删除源文件
	EventSkip                          // 两侧一致，跳过
	EventUnresolved                    // 冲突无法自动解决
	EventRefused                       // 策略禁止的操作
	EventInterrupted                   // 传输中断，清理残留文件
)

var eventKindNames = map[EventKind]string{
	EventDelete:       "delete",
	EventClear:        "clear",
	EventMkdir:        "mkdir",
	EventCopy:         "copy",
	EventDeleteSource: "delete_source",
	EventSkip:         "skip",
	EventUnresolved:   "unresolved",
	EventRefused:      "refused",
	EventInterrupted:  "interrupted",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event 一条结构化的同步事件
type Event struct {
	Kind      EventKind
	Direction Direction
	Key       string
	Path      string // 被操作的完整路径
	Size      int64
	DryRun    bool
	Reason    string
}
