//go:build !linux

package local

import (
	"os"
	"time"
)

// 非 Linux 平台没有统一的 atime 字段，退回到修改时间
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
