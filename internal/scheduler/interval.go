// Package scheduler 提供轮询任务的周期解析与循环执行。
package scheduler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"kairos/internal/logger"
)

// ParseIntervalDuration 解析 "30s"、"5m"、"1h"、"1d" 这类周期串。
// 非法输入返回 (0, false)。
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, true
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// RunEvery 立即执行一次 task，随后按 interval 周期执行，
// ctx 取消后返回。task 返回错误只记日志，不中断循环。
func RunEvery(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	run := func() {
		if err := task(ctx); err != nil {
			logger.Warnf("[%s] 执行失败: %v", name, err)
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("[%s] 停止", name)
			return
		case <-ticker.C:
			run()
		}
	}
}
