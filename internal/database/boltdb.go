package database

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	// JobsBucket 任务记录，Key 为任务 ID
	JobsBucket = "Jobs"
	// EventsBucket 事件日志，每个任务一个子 Bucket，Key 为递增序号
	EventsBucket = "Events"
)

// DB 封装 BoltDB 实例
type DB struct {
	conn *bbolt.DB
	now  func() time.Time
}

// NewBoltDB 初始化并打开数据库
func NewBoltDB(dbPath string) (*DB, error) {
	// 打开数据库，如果文件不存在则创建
	// Timeout 选项防止两个进程同时打开同一个数据库导致死锁
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("打开 BoltDB 失败: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{JobsBucket, EventsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("创建 Bucket 失败: %w", err)
	}

	return &DB{conn: db, now: time.Now}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	return d.conn.Close()
}

func putJob(tx *bbolt.Tx, job *JobRecord) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}
	return tx.Bucket([]byte(JobsBucket)).Put([]byte(job.ID), data)
}

// BeginJob 记录一个新任务，ID 为空时自动生成
func (d *DB) BeginJob(job *JobRecord) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = JobRunning
	job.StartedAt = d.now().UnixNano()

	return d.conn.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.Bucket([]byte(EventsBucket)).CreateBucketIfNotExists([]byte(job.ID)); err != nil {
			return err
		}
		return putJob(tx, job)
	})
}

// FinishJob 写入任务的最终状态
func (d *DB) FinishJob(job *JobRecord, runErr error) error {
	job.FinishedAt = d.now().UnixNano()
	job.Status = JobDone
	if runErr != nil {
		job.Status = JobFailed
		job.Error = runErr.Error()
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		return putJob(tx, job)
	})
}

// AppendEvent 追加一条事件，序号由数据库分配
func (d *DB) AppendEvent(jobID string, ev *EventRecord) error {
	if ev.Time == 0 {
		ev.Time = d.now().UnixNano()
	}
	return d.conn.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(EventsBucket)).Bucket([]byte(jobID))
		if b == nil {
			return fmt.Errorf("任务不存在: %s", jobID)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		ev.Seq = seq

		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("序列化失败: %w", err)
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], data)
	})
}

// GetJob 获取单个任务，不存在时返回 nil, nil
func (d *DB) GetJob(id string) (*JobRecord, error) {
	var job *JobRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(JobsBucket)).Get([]byte(id))
		if v == nil {
			return nil
		}
		job = &JobRecord{}
		return json.Unmarshal(v, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs 获取全部任务，按开始时间排序
func (d *DB) ListJobs() ([]*JobRecord, error) {
	var jobs []*JobRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(JobsBucket)).ForEach(func(k, v []byte) error {
			var job JobRecord
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("解析数据失败 key=%s: %w", string(k), err)
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].StartedAt < jobs[j].StartedAt })
	return jobs, nil
}

// Events 按写入顺序返回任务的全部事件
func (d *DB) Events(jobID string) ([]*EventRecord, error) {
	var events []*EventRecord
	err := d.conn.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(EventsBucket)).Bucket([]byte(jobID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var ev EventRecord
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("解析事件失败 job=%s: %w", jobID, err)
			}
			events = append(events, &ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
