package aggregator

import (
	"sort"
	"sync"
	"time"

	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/pkg/logger"
)

// Aggregator 消费已分类交易，维护内存态 signer 快照与资产二级索引。
// 快照按需从存储懒加载（首次见到该 signer 时），每次更新后回写。
// 所有方法并发安全；Update 只降级不失败，存储故障不阻断消费。
type Aggregator struct {
	mu      sync.Mutex
	store   SnapshotStore
	signers map[string]*SignerStats
	assets  map[string]*AssetStats

	// targets 非空时只聚合名单内的 signer；全局流水计数不受过滤影响
	targets map[string]struct{}

	totalSeen uint64

	now func() time.Time
}

type Options struct {
	// TargetSigners 可选的 signer 过滤名单（base58）
	TargetSigners []string
	Now           func() time.Time
}

func New(store SnapshotStore, opts Options) *Aggregator {
	a := &Aggregator{
		store:   store,
		signers: make(map[string]*SignerStats),
		assets:  make(map[string]*AssetStats),
		now:     opts.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if len(opts.TargetSigners) > 0 {
		a.targets = make(map[string]struct{}, len(opts.TargetSigners))
		for _, s := range opts.TargetSigners {
			a.targets[s] = struct{}{}
		}
	}
	return a
}

// Update 把一笔已分类交易折叠进对应 signer 的快照并持久化。
// 返回更新后的快照；signer 被过滤名单排除时返回 nil。
func (a *Aggregator) Update(tx *core.ClassifiedTx) *SignerStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSeen++

	signer := tx.Signer.String()
	if a.targets != nil {
		if _, ok := a.targets[signer]; !ok {
			return nil
		}
	}

	stats := a.loadOrInit(signer)
	stats.fold(tx, a.now())

	if tx.Mint != nil {
		addr := tx.Mint.String()
		as := a.assets[addr]
		if as == nil {
			as = &AssetStats{Address: addr}
			a.assets[addr] = as
		}
		as.fold(tx)
	}

	if err := a.store.Save(stats); err != nil {
		logger.Errorf("[aggregator] save snapshot failed: signer=%s err=%v", signer, err)
	}
	return stats
}

// loadOrInit 内存未命中时尝试从存储恢复历史快照，失败或不存在则新建。
func (a *Aggregator) loadOrInit(signer string) *SignerStats {
	if stats, ok := a.signers[signer]; ok {
		return stats
	}

	stats, err := a.store.Load(signer)
	if err != nil {
		logger.Warnf("[aggregator] load snapshot failed, starting fresh: signer=%s err=%v", signer, err)
		stats = nil
	}
	if stats == nil {
		stats = newSignerStats(signer, a.now())
	}
	a.signers[signer] = stats
	return stats
}

// TotalSeen 返回全局流水计数（含被过滤名单排除的交易）
func (a *Aggregator) TotalSeen() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalSeen
}

// TopAssetsByProfit 按 profit 降序返回前 n 个资产的索引副本。
func (a *Aggregator) TopAssetsByProfit(n int) []AssetStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]AssetStats, 0, len(a.assets))
	for _, as := range a.assets {
		cp := *as
		cp.Venues = copyCounts(as.Venues)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profit != out[j].Profit {
			return out[i].Profit > out[j].Profit
		}
		return out[i].Address < out[j].Address
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// VenueCount 场所使用次数投影
type VenueCount struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
}

// TopVenuesForAsset 按使用次数降序返回某资产触达的前 n 个场所。
func (a *Aggregator) TopVenuesForAsset(asset string, n int) []VenueCount {
	a.mu.Lock()
	defer a.mu.Unlock()

	as, ok := a.assets[asset]
	if !ok {
		return nil
	}
	out := make([]VenueCount, 0, len(as.Venues))
	for name, count := range as.Venues {
		out = append(out, VenueCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// GlobalSummary 汇总全部内存态快照。
func (a *Aggregator) GlobalSummary() GlobalSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	sum := GlobalSummary{
		Signers: len(a.signers),
		Assets:  len(a.assets),
	}
	for _, s := range a.signers {
		sum.Total += s.Transactions.Total
		sum.Successful += s.Transactions.Successful
		sum.Failed += s.Transactions.Failed
		sum.Spam += s.TransactionTypes.Spam
		sum.Jito += s.TransactionTypes.Jito
		if ts := s.Tips[FeeKeySpam]; ts != nil {
			sum.SpamLamports += ts.Total
		}
		if ts := s.Tips[FeeKeyJito]; ts != nil {
			sum.JitoLamports += ts.Total
		}
	}
	return sum
}

// SaveReport 渲染当前全部内存态快照的汇总报告并持久化。
func (a *Aggregator) SaveReport() error {
	a.mu.Lock()
	report := &Report{
		GeneratedAt: a.now(),
		SignerCount: len(a.signers),
		Signers:     make(map[string]*SignerStats, len(a.signers)),
	}
	for addr, stats := range a.signers {
		report.Signers[addr] = stats
	}
	a.mu.Unlock()

	return a.store.SaveReport(report)
}

func copyCounts(m map[string]uint64) map[string]uint64 {
	if m == nil {
		return nil
	}
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
