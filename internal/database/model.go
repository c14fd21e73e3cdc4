package database

import "time"

// 任务状态
const (
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// JobRecord 一次同步任务的记录
// 存入数据库时会序列化为 JSON
type JobRecord struct {
	// 任务 ID (UUID)，同时作为数据库的 Key
	ID string `json:"id"`

	LocalRoot  string `json:"local_root"`
	RemoteRoot string `json:"remote_root"`
	DryRun     bool   `json:"dry_run"`

	Status string `json:"status"`
	// 失败原因，仅在 Status 为 failed 时有值
	Error string `json:"error,omitempty"`

	Bytes      int64 `json:"bytes"`
	Copied     int   `json:"copied"`
	Deleted    int   `json:"deleted"`
	Skipped    int   `json:"skipped"`
	Unresolved int   `json:"unresolved"`

	// 开始/结束时间 (Unix Nano)
	StartedAt  int64 `json:"started_at"`
	FinishedAt int64 `json:"finished_at,omitempty"`
}

// Duration 任务耗时，未结束时返回 0
func (j *JobRecord) Duration() time.Duration {
	if j.FinishedAt == 0 {
		return 0
	}
	return time.Duration(j.FinishedAt - j.StartedAt)
}

// EventRecord 任务中的一条事件
type EventRecord struct {
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
	Key       string `json:"key"`
	Path      string `json:"path"`
	Size      int64  `json:"size,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Time      int64  `json:"time"`
}
