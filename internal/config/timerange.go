package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	syncer "adbsync/internal/sync"
)

// ErrInvalidTimeRange 时间范围格式错误
var ErrInvalidTimeRange = errors.New("invalid time range, expected yymmdd[.hhmmss]-yymmdd[.hhmmss]")

// ParseTimeRange 解析 "890604-191001.120000" 这样的时间范围
// 空字符串返回 nil；某一端为空或 "0" 表示不限
// 只给日期时取该日期的下一天 0 点
func ParseTimeRange(s string, loc *time.Location) (*syncer.TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeRange, s)
	}

	var bounds [2]*time.Time
	for i, part := range parts {
		if part == "" || part == "0" {
			continue
		}
		t, err := parseBound(part, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimeRange, s, err)
		}
		bounds[i] = &t
	}
	return &syncer.TimeRange{Start: bounds[0], End: bounds[1]}, nil
}

func parseBound(s string, loc *time.Location) (time.Time, error) {
	datePart, timePart, hasTime := strings.Cut(s, ".")

	var layout string
	switch len(datePart) {
	case 6:
		layout = "060102"
	case 8:
		layout = "20060102"
	default:
		return time.Time{}, fmt.Errorf("bad date %q", datePart)
	}

	if !hasTime {
		d, err := time.ParseInLocation(layout, datePart, loc)
		if err != nil {
			return time.Time{}, err
		}
		return d.AddDate(0, 0, 1), nil
	}
	return time.ParseInLocation(layout+".150405", datePart+"."+timePart, loc)
}
