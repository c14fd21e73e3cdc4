package sync

import (
	"errors"
	"fmt"
)

// ErrOverlappingPairs 双向同步或删除模式下，多组路径的目标端发生重叠
var ErrOverlappingPairs = errors.New("two-way and delete are only supported for disjoint sets of source and destination paths")

// Pair 一组需要同步的本地/设备路径
type Pair struct {
	Local  string
	Remote string
}

// ValidatePairs 双向同步或开启删除时，所有会被写入的一侧路径必须互不相同
func ValidatePairs(pairs []Pair, p Policy) error {
	if !p.TwoWay() && !p.DeleteMissing {
		return nil
	}
	if p.RemoteToLocal {
		if dup, ok := findDuplicate(pairs, func(x Pair) string { return x.Local }); ok {
			return fmt.Errorf("%w: local path %q appears more than once", ErrOverlappingPairs, dup)
		}
	}
	if p.LocalToRemote {
		if dup, ok := findDuplicate(pairs, func(x Pair) string { return x.Remote }); ok {
			return fmt.Errorf("%w: remote path %q appears more than once", ErrOverlappingPairs, dup)
		}
	}
	return nil
}

func findDuplicate(pairs []Pair, side func(Pair) string) (string, bool) {
	seen := make(map[string]bool, len(pairs))
	for _, x := range pairs {
		s := side(x)
		if seen[s] {
			return s, true
		}
		seen[s] = true
	}
	return "", false
}
