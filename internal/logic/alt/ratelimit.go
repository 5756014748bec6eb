package alt

import (
	"context"
	"sync"
	"time"
)

// SlidingLimiter 按 1 秒滑动窗口限制调用次数，用于约束查找表的 RPC 拉取频率。
type SlidingLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	maxCalls  int
	callTimes []time.Time
	now       func() time.Time
}

func NewSlidingLimiter(maxCallsPerSecond int, now func() time.Time) *SlidingLimiter {
	if maxCallsPerSecond <= 0 {
		maxCallsPerSecond = 10
	}
	if now == nil {
		now = time.Now
	}
	return &SlidingLimiter{
		window:   time.Second,
		maxCalls: maxCallsPerSecond,
		now:      now,
	}
}

// Wait 阻塞直到窗口内出现空位或 ctx 结束。
// 取得空位即登记一次调用；ctx 结束返回其错误。
func (l *SlidingLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		// 剔除窗口外的历史调用
		cutoff := now.Add(-l.window)
		kept := l.callTimes[:0]
		for _, t := range l.callTimes {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		l.callTimes = kept

		if len(l.callTimes) < l.maxCalls {
			l.callTimes = append(l.callTimes, now)
			l.mu.Unlock()
			return nil
		}

		// 最早一次调用滑出窗口后才可能有空位
		wait := l.callTimes[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
