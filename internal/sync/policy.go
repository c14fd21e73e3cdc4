package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPolicy 选项组合不合法
var ErrInvalidPolicy = errors.New("invalid sync policy")

// KindConflictPolicy 同一路径一侧是目录、另一侧不是时的处理方式
type KindConflictPolicy int

const (
	// KindConflictSkip (默认) 记录警告并跳过
	KindConflictSkip KindConflictPolicy = iota
	// KindConflictPreferLocal 以本地为准 (需要开启对应方向)
	KindConflictPreferLocal
	// KindConflictPreferRemote 以设备为准 (需要开启对应方向)
	KindConflictPreferRemote
	// KindConflictAbort 终止本次任务
	KindConflictAbort
)

var kindConflictNames = map[KindConflictPolicy]string{
	KindConflictSkip:         "skip",
	KindConflictPreferLocal:  "prefer_local",
	KindConflictPreferRemote: "prefer_remote",
	KindConflictAbort:        "abort",
}

func (k KindConflictPolicy) String() string {
	if s, ok := kindConflictNames[k]; ok {
		return s
	}
	return fmt.Sprintf("KindConflictPolicy(%d)", int(k))
}

// ParseKindConflictPolicy 将配置中的字符串转换为枚举值，空字符串表示默认值
func ParseKindConflictPolicy(s string) (KindConflictPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindConflictSkip, nil
	}
	for k, name := range kindConflictNames {
		if name == s {
			return k, nil
		}
	}
	return KindConflictSkip, fmt.Errorf("unknown kind conflict policy %q", s)
}

// TimeRange 修改时间过滤窗口，两端均为闭区间，nil 表示不限
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains 判断 t 是否落在窗口内，nil 窗口包含一切
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Policy 一次同步任务的全部选项，任务运行期间不会被修改
type Policy struct {
	LocalToRemote  bool
	RemoteToLocal  bool
	DeleteMissing  bool // 删除目标端中源端不存在的条目 (仅单向)
	AllowOverwrite bool // 允许覆盖同类型的已有条目
	AllowReplace   bool // 允许文件和目录互相替换
	CopyLinks      bool // 遍历时跟随符号链接
	DryRun         bool
	DelSource      bool // 传输成功后删除源文件 (相当于移动)
	TimeRange      *TimeRange
	Excludes       []string
	KindConflict   KindConflictPolicy
}

// DefaultPolicy 单向推送，允许覆盖
func DefaultPolicy() Policy {
	return Policy{
		LocalToRemote:  true,
		AllowOverwrite: true,
		KindConflict:   KindConflictSkip,
	}
}

// TwoWay 两个方向都开启
func (p *Policy) TwoWay() bool {
	return p.LocalToRemote && p.RemoteToLocal
}

// Normalize 应用选项之间的隐含关系
func (p *Policy) Normalize() {
	// 移动语义下目标端的同名条目必须能被替换
	if p.DelSource {
		p.AllowReplace = true
	}
}

// Validate 校验互斥的选项组合
func (p *Policy) Validate() error {
	if !p.LocalToRemote && !p.RemoteToLocal {
		return fmt.Errorf("%w: no sync direction enabled", ErrInvalidPolicy)
	}
	if p.AllowReplace && !p.AllowOverwrite {
		return fmt.Errorf("%w: no-clobber and force are mutually exclusive", ErrInvalidPolicy)
	}
	if p.DeleteMissing && p.TwoWay() {
		return fmt.Errorf("%w: delete and two-way are mutually exclusive", ErrInvalidPolicy)
	}
	if p.DelSource && (p.DeleteMissing || p.TwoWay() || !p.AllowOverwrite) {
		return fmt.Errorf("%w: deleting source means moving, which is incompatible with delete, two-way or no-clobber", ErrInvalidPolicy)
	}
	if _, ok := kindConflictNames[p.KindConflict]; !ok {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, p.KindConflict)
	}
	return nil
}
