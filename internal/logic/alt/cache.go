// Package alt 维护 Address Lookup Table 的解析缓存。
// 缓存带 TTL 与负缓存：拉取失败同样入缓存，避免对不可达的表反复发起网络调用。
package alt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mev-monitor-sol/internal/types"
	"mev-monitor-sol/pkg/logger"
)

const (
	DefaultTTL           = 300 * time.Second
	DefaultSweepInterval = 60 * time.Second
	DefaultFetchTimeout  = 5 * time.Second
	DefaultMaxCallsPerS  = 10
)

// TableFetcher 是外部 RPC 拉取查找表的协作方。
// 实现方对不存在的表返回错误即可，缓存层统一按失败处理。
type TableFetcher interface {
	FetchTable(ctx context.Context, table types.Pubkey) ([]types.Pubkey, error)
}

// Clock 注入时间源，TTL 逻辑全部经由它取当前时间，便于测试。
type Clock func() time.Time

// Options 缓存可调参数，零值字段使用默认值。
type Options struct {
	TTL            time.Duration
	SweepInterval  time.Duration
	FetchTimeout   time.Duration
	MaxCallsPerSec int
	Clock          Clock
}

// entry 为不可变快照：TTL 过期后整体替换，绝不原地修改。
// Addresses 为 nil 表示负缓存（拉取失败）。
type entry struct {
	addresses []types.Pubkey
	fetchedAt time.Time
}

// call 表示一次进行中的拉取，后到的同表请求等待它完成而非重复发起。
type call struct {
	done      chan struct{}
	addresses []types.Pubkey
	ok        bool
}

// Stats 是缓存状态的只读快照。
type Stats struct {
	Cached  int     `json:"cached"`
	Success uint64  `json:"success"`
	Failure uint64  `json:"failure"`
	HitRate float64 `json:"hit_rate"`
}

type Cache struct {
	mu       sync.Mutex
	entries  map[types.Pubkey]*entry
	inflight map[types.Pubkey]*call

	fetcher      TableFetcher
	limiter      *SlidingLimiter
	ttl          time.Duration
	sweepEvery   time.Duration
	fetchTimeout time.Duration
	now          Clock

	hits    atomic.Uint64
	misses  atomic.Uint64
	success atomic.Uint64
	failure atomic.Uint64
}

func NewCache(fetcher TableFetcher, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MaxCallsPerSec <= 0 {
		opts.MaxCallsPerSec = DefaultMaxCallsPerS
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		entries:      make(map[types.Pubkey]*entry),
		inflight:     make(map[types.Pubkey]*call),
		fetcher:      fetcher,
		limiter:      NewSlidingLimiter(opts.MaxCallsPerSec, func() time.Time { return opts.Clock() }),
		ttl:          opts.TTL,
		sweepEvery:   opts.SweepInterval,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Clock,
	}
}

// Resolve 返回表地址对应的地址列表。
// 命中未过期缓存立即返回；否则经限流器发起一次拉取并缓存结果（含失败）。
// 同一表地址的并发调用共享同一次在途拉取。
// 任何失败都只表现为 (nil, false)，不向调用方抛错。
func (c *Cache) Resolve(ctx context.Context, table types.Pubkey) ([]types.Pubkey, bool) {
	c.mu.Lock()
	if e, ok := c.entries[table]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		c.hits.Add(1)
		return e.addresses, e.addresses != nil
	}

	if cl, ok := c.inflight[table]; ok {
		c.mu.Unlock()
		c.hits.Add(1) // 共享在途结果同样不消耗限流预算
		select {
		case <-cl.done:
			return cl.addresses, cl.ok
		case <-ctx.Done():
			return nil, false
		}
	}

	cl := &call{done: make(chan struct{})}
	c.inflight[table] = cl
	c.mu.Unlock()
	c.misses.Add(1)

	addresses := c.fetch(ctx, table)

	c.mu.Lock()
	c.entries[table] = &entry{addresses: addresses, fetchedAt: c.now()}
	delete(c.inflight, table)
	c.mu.Unlock()

	cl.addresses = addresses
	cl.ok = addresses != nil
	close(cl.done)

	return cl.addresses, cl.ok
}

// fetch 执行带限流与超时的单次拉取，失败返回 nil。
func (c *Cache) fetch(ctx context.Context, table types.Pubkey) []types.Pubkey {
	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	if err := c.limiter.Wait(fctx); err != nil {
		c.failure.Add(1)
		logger.Warnf("[alt] rate limit wait aborted, table=%s: %v", table.Short(), err)
		return nil
	}

	addresses, err := c.fetcher.FetchTable(fctx, table)
	if err != nil {
		c.failure.Add(1)
		logger.Warnf("[alt] fetch table failed, table=%s: %v", table.Short(), err)
		return nil
	}
	c.success.Add(1)
	return addresses
}

// StartSweeper 启动后台清理，按固定间隔移除过期条目（含负缓存标记）。
func (c *Cache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for table, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, table)
			removed++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()
	if removed > 0 {
		logger.Debugf("[alt] sweep removed %d expired tables, %d cached", removed, remaining)
	}
}

// Stats 返回当前缓存统计，供周期性报表使用。
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	cached := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	total := hits + c.misses.Load()
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Cached:  cached,
		Success: c.success.Load(),
		Failure: c.failure.Load(),
		HitRate: rate,
	}
}
