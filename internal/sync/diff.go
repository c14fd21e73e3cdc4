package sync

import (
	"iter"
	"slices"
	"strings"
)

func compareKey(a, b Entry) int {
	return strings.Compare(a.Key, b.Key)
}

// Diff 将两个序列排序后做一次归并，得到仅左侧、两侧共有、仅右侧三部分
// 三个结果都按 Key 升序排列
func Diff(left, right iter.Seq[Entry]) DiffResult {
	a := slices.Collect(left)
	b := slices.Collect(right)
	slices.SortStableFunc(a, compareKey)
	slices.SortStableFunc(b, compareKey)

	var res DiffResult
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := strings.Compare(a[i].Key, b[j].Key); {
		case c == 0:
			res.Common = append(res.Common, CommonEntry{Key: a[i].Key, Local: a[i].Meta, Remote: b[j].Meta})
			i++
			j++
		case c < 0:
			res.LeftOnly = append(res.LeftOnly, a[i])
			i++
		default:
			res.RightOnly = append(res.RightOnly, b[j])
			j++
		}
	}
	res.LeftOnly = append(res.LeftOnly, a[i:]...)
	res.RightOnly = append(res.RightOnly, b[j:]...)
	return res
}
