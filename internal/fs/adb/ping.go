package adb

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotWorking 设备未连接，或者 shell 没有原样回显测试字符串
var ErrNotWorking = errors.New("device not connected or not working")

// pingStrings 需要包含各种 shell 特殊字符，但不能有百分号
// 这里用 date 而不是 echo：date 只调用 strftime，echo 还会自己处理反斜杠转义
var pingStrings = []string{
	"(",
	"(;  #`ls`$PATH'\"(\\\\\\\\){};!\xc0\xaf\xff\xc2\xbf",
}

// Ping 测试 adb 连接以及参数引用是否正确
func (a *Adapter) Ping(ctx context.Context) error {
	for _, s := range pingStrings {
		res, err := a.client.Shell(ctx, "date +"+QuoteArgument(s))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotWorking, err)
		}
		good := false
		for _, line := range res.Lines() {
			if line == s {
				good = true
			}
		}
		if !good {
			return fmt.Errorf("%w: echo mismatch for %q", ErrNotWorking, s)
		}
	}
	return nil
}
