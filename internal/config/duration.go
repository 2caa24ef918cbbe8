package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWindowDuration 解析 "30m"/"2h"/"1d"/"1w" 形式的时长，
// 特征构建器按它换算覆盖度窗口。
func ParseWindowDuration(raw string) (time.Duration, error) {
	return parseWindowDuration(raw)
}

// parseWindowDuration 解析 "30m"/"2h"/"1d"/"1w" 形式的时长。
// 纯数字后缀单位以外的形式回退到 time.ParseDuration。
func parseWindowDuration(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("duration cannot be empty")
	}
	unit := raw[len(raw)-1]
	numStr := strings.TrimSpace(raw[:len(raw)-1])
	if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
		switch unit {
		case 'm':
			return time.Duration(n) * time.Minute, nil
		case 'h':
			return time.Duration(n) * time.Hour, nil
		case 'd':
			return time.Duration(n) * 24 * time.Hour, nil
		case 'w':
			return time.Duration(n) * 7 * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration: %q", raw)
	}
	return d, nil
}
