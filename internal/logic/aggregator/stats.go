// Package aggregator 按 signer 维护流式统计快照，并维护按资产的二级索引。
// 快照为 JSON 文档，经 SnapshotStore 持久化，进程重启后可增量续写。
package aggregator

import (
	"time"

	"mev-monitor-sol/internal/consts"
	"mev-monitor-sol/internal/logic/core"
)

const (
	// TipSampleCap 单类小费样本环的容量上限
	TipSampleCap = 100
	// RecentTxCap 最近交易环的容量上限（新在前）
	RecentTxCap = 10
)

// TipStats 是单个费用类别（spam / jito）的小费统计。
// Samples 只保留最近 TipSampleCap 笔，淘汰最旧样本，Min/Max/Total 覆盖全量。
type TipStats struct {
	Min     uint64   `json:"min"`
	Max     uint64   `json:"max"`
	Total   uint64   `json:"total"`
	Count   uint64   `json:"count"`
	Average float64  `json:"average"`
	Samples []uint64 `json:"samples"`
}

func (t *TipStats) observe(lamports uint64) {
	if t.Count == 0 || lamports < t.Min {
		t.Min = lamports
	}
	if lamports > t.Max {
		t.Max = lamports
	}
	t.Total += lamports
	t.Count++
	t.Average = float64(t.Total) / float64(t.Count)

	t.Samples = append(t.Samples, lamports)
	if len(t.Samples) > TipSampleCap {
		t.Samples = t.Samples[len(t.Samples)-TipSampleCap:]
	}
}

// TxCounts 成功/失败计数
type TxCounts struct {
	Total      uint64 `json:"total"`
	Successful uint64 `json:"successful"`
	Failed     uint64 `json:"failed"`
}

// TypeCounts 费用类别计数
type TypeCounts struct {
	Spam    uint64 `json:"spam"`
	Jito    uint64 `json:"jito"`
	Unknown uint64 `json:"unknown"`
}

// MintUsage 单个资产在该 signer 下的出现统计
type MintUsage struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Count   uint64 `json:"count"`
	Success uint64 `json:"success"`
	Fail    uint64 `json:"fail"`
}

// PoolUsage 单个池子合约的出现统计，键形如 "Raydium v4:<pool>"
type PoolUsage struct {
	DexName string `json:"dexName"`
	Address string `json:"address"`
	Count   uint64 `json:"count"`
}

// RecentTx 最近交易环里的单条记录
type RecentTx struct {
	Signature   string `json:"signature"`
	Slot        uint64 `json:"slot"`
	Type        string `json:"type"`
	TipLamports uint64 `json:"tipLamports"`
	Failed      bool   `json:"failed"`
	Mint        string `json:"mint,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// SignerStats 是持久化的单 signer 快照文档。
// 字段布局即存储格式，改动需要考虑已落盘的历史快照。
type SignerStats struct {
	Address          string                `json:"address"`
	FirstSeen        time.Time             `json:"firstSeen"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	Transactions     TxCounts              `json:"transactions"`
	TransactionTypes TypeCounts            `json:"transactionTypes"`
	Tips             map[string]*TipStats  `json:"tips"`
	Mints            map[string]*MintUsage `json:"mints"`
	PoolContracts    map[string]*PoolUsage `json:"poolContracts"`
	Recent           []RecentTx            `json:"recentTransactions"`
}

func newSignerStats(address string, now time.Time) *SignerStats {
	return &SignerStats{
		Address:   address,
		FirstSeen: now,
		Tips: map[string]*TipStats{
			FeeKeySpam: {},
			FeeKeyJito: {},
		},
		Mints:         make(map[string]*MintUsage),
		PoolContracts: make(map[string]*PoolUsage),
	}
}

// Tips 映射的键即落盘字段名，摘要日志按同一组键读取。
const (
	FeeKeySpam    = "spam"
	FeeKeyJito    = "jito"
	FeeKeyUnknown = "unknown"
)

func feeKey(c core.FeeCategory) string {
	switch c {
	case core.FeeSpam:
		return FeeKeySpam
	case core.FeeJito:
		return FeeKeyJito
	default:
		return FeeKeyUnknown
	}
}

// fold 把一笔已分类交易折叠进快照。持久化之外的全部状态变更都在这里。
func (s *SignerStats) fold(tx *core.ClassifiedTx, now time.Time) {
	s.UpdatedAt = now

	s.Transactions.Total++
	if tx.Failed {
		s.Transactions.Failed++
	} else {
		s.Transactions.Successful++
	}

	key := feeKey(tx.FeeCategory)
	switch tx.FeeCategory {
	case core.FeeSpam:
		s.TransactionTypes.Spam++
	case core.FeeJito:
		s.TransactionTypes.Jito++
	default:
		s.TransactionTypes.Unknown++
	}
	if tx.FeeCategory != core.FeeUndetermined {
		ts := s.Tips[key]
		if ts == nil {
			ts = &TipStats{}
			if s.Tips == nil {
				s.Tips = make(map[string]*TipStats, 2)
			}
			s.Tips[key] = ts
		}
		ts.observe(tx.FeeLamports)
	}

	recent := RecentTx{
		Signature:   tx.Signature.String(),
		Slot:        tx.Slot,
		Type:        key,
		TipLamports: tx.FeeLamports,
		Failed:      tx.Failed,
		Timestamp:   now.UnixMilli(),
	}

	if tx.Mint != nil {
		addr := tx.Mint.String()
		recent.Mint = addr
		mu := s.Mints[addr]
		if mu == nil {
			mu = &MintUsage{Address: addr}
			if s.Mints == nil {
				s.Mints = make(map[string]*MintUsage)
			}
			s.Mints[addr] = mu
		}
		mu.Count++
		if tx.Failed {
			mu.Fail++
		} else {
			mu.Success++
		}
	}

	for _, v := range tx.Venues {
		if v.Pool == nil {
			continue
		}
		poolAddr := v.Pool.String()
		poolKey := v.Name + ":" + poolAddr
		pu := s.PoolContracts[poolKey]
		if pu == nil {
			pu = &PoolUsage{DexName: v.Name, Address: poolAddr}
			if s.PoolContracts == nil {
				s.PoolContracts = make(map[string]*PoolUsage)
			}
			s.PoolContracts[poolKey] = pu
		}
		pu.Count++
	}

	// 新在前，超出容量淘汰最旧
	s.Recent = append([]RecentTx{recent}, s.Recent...)
	if len(s.Recent) > RecentTxCap {
		s.Recent = s.Recent[:RecentTxCap]
	}
}

// SuccessRate 0~100
func (s *SignerStats) SuccessRate() float64 {
	if s.Transactions.Total == 0 {
		return 0
	}
	return float64(s.Transactions.Successful) / float64(s.Transactions.Total) * 100
}

// Report 是跨 signer 的汇总报告文档
type Report struct {
	GeneratedAt time.Time               `json:"generatedAt"`
	SignerCount int                     `json:"signerCount"`
	Signers     map[string]*SignerStats `json:"signers"`
}

// AssetStats 是单个资产的二级索引条目，随每次 Update 增量维护。
// Profit 为该资产下 jito 小费总额与 spam 小费总额之差，
// 反映 signer 在该资产上愿意为确定性出价的程度。
type AssetStats struct {
	Address string            `json:"address"`
	Profit  int64             `json:"profit"`
	TxCount uint64            `json:"txCount"`
	Success uint64            `json:"success"`
	Fail    uint64            `json:"fail"`
	TipMin  uint64            `json:"tipMin"`
	TipMax  uint64            `json:"tipMax"`
	Venues  map[string]uint64 `json:"venues"`
}

func (a *AssetStats) fold(tx *core.ClassifiedTx) {
	a.TxCount++
	if tx.Failed {
		a.Fail++
	} else {
		a.Success++
	}

	switch tx.FeeCategory {
	case core.FeeJito:
		a.Profit += int64(tx.FeeLamports)
	case core.FeeSpam:
		a.Profit -= int64(tx.FeeLamports)
	}
	if tx.FeeCategory != core.FeeUndetermined {
		if a.TipMin == 0 || tx.FeeLamports < a.TipMin {
			a.TipMin = tx.FeeLamports
		}
		if tx.FeeLamports > a.TipMax {
			a.TipMax = tx.FeeLamports
		}
	}

	for _, v := range tx.Venues {
		if a.Venues == nil {
			a.Venues = make(map[string]uint64)
		}
		a.Venues[v.Name]++
	}
}

// GlobalSummary 全局汇总投影
type GlobalSummary struct {
	Signers      int    `json:"signers"`
	Assets       int    `json:"assets"`
	Total        uint64 `json:"total"`
	Successful   uint64 `json:"successful"`
	Failed       uint64 `json:"failed"`
	Spam         uint64 `json:"spam"`
	Jito         uint64 `json:"jito"`
	SpamLamports uint64 `json:"spamLamports"`
	JitoLamports uint64 `json:"jitoLamports"`
}

// SolString 便于日志输出
func SolString(lamports uint64) float64 {
	return float64(lamports) / float64(consts.LamportsPerSol)
}
