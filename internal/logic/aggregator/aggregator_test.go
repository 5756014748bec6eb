package aggregator

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore 用 JSON 字节模拟持久化，顺带覆盖序列化往返
type fakeStore struct {
	snapshots map[string][]byte
	reports   []*Report
	saveCalls int
	loadErr   error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string][]byte)}
}

func (f *fakeStore) Load(signer string) (*SignerStats, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	data, ok := f.snapshots[signer]
	if !ok {
		return nil, nil
	}
	var stats SignerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (f *fakeStore) Save(stats *SignerStats) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	f.snapshots[stats.Address] = data
	return nil
}

func (f *fakeStore) SaveReport(r *Report) error {
	f.reports = append(f.reports, r)
	return nil
}

func pk(b byte) types.Pubkey {
	var p types.Pubkey
	p[2] = b
	return p
}

var txSeq byte

func classified(signer byte, cat core.FeeCategory, lamports uint64, failed bool) *core.ClassifiedTx {
	txSeq++
	var sig types.Signature
	sig[0] = txSeq
	return &core.ClassifiedTx{
		Signature:   sig,
		Slot:        uint64(1000 + int(txSeq)),
		Signer:      pk(signer),
		Failed:      failed,
		FeeCategory: cat,
		FeeLamports: lamports,
	}
}

func withMint(tx *core.ClassifiedTx, mint types.Pubkey) *core.ClassifiedTx {
	tx.Mint = &mint
	return tx
}

func withVenue(tx *core.ClassifiedTx, name string, pool types.Pubkey) *core.ClassifiedTx {
	tx.Venues = append(tx.Venues, core.VenueRef{Name: name, Pool: &pool})
	return tx
}

func fixedNow() func() time.Time {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestUpdateFoldsCounters(t *testing.T) {
	store := newFakeStore()
	agg := New(store, Options{Now: fixedNow()})

	mint := pk(0xF1)
	pool := pk(0xF2)

	agg.Update(withVenue(withMint(classified(1, core.FeeSpam, 3000, false), mint), "Raydium v4", pool))
	agg.Update(withMint(classified(1, core.FeeJito, 9000, false), mint))
	stats := agg.Update(classified(1, core.FeeUndetermined, 0, true))

	require.NotNil(t, stats)
	assert.Equal(t, uint64(3), stats.Transactions.Total)
	assert.Equal(t, uint64(2), stats.Transactions.Successful)
	assert.Equal(t, uint64(1), stats.Transactions.Failed)
	assert.Equal(t, uint64(1), stats.TransactionTypes.Spam)
	assert.Equal(t, uint64(1), stats.TransactionTypes.Jito)
	assert.Equal(t, uint64(1), stats.TransactionTypes.Unknown)

	require.NotNil(t, stats.Tips[FeeKeySpam])
	assert.Equal(t, uint64(3000), stats.Tips[FeeKeySpam].Min)
	assert.Equal(t, uint64(3000), stats.Tips[FeeKeySpam].Max)
	assert.Equal(t, []uint64{3000}, stats.Tips[FeeKeySpam].Samples)
	assert.Equal(t, float64(9000), stats.Tips[FeeKeyJito].Average)
	// undetermined 不计入任何小费序列
	assert.Equal(t, uint64(1), stats.Tips[FeeKeySpam].Count)
	assert.Equal(t, uint64(1), stats.Tips[FeeKeyJito].Count)

	mu := stats.Mints[mint.String()]
	require.NotNil(t, mu)
	assert.Equal(t, uint64(2), mu.Count)
	assert.Equal(t, uint64(2), mu.Success)

	pu := stats.PoolContracts["Raydium v4:"+pool.String()]
	require.NotNil(t, pu)
	assert.Equal(t, uint64(1), pu.Count)
	assert.Equal(t, "Raydium v4", pu.DexName)

	assert.Equal(t, 3, store.saveCalls, "每次更新都应持久化")
	assert.False(t, stats.UpdatedAt.Before(stats.FirstSeen))
}

func TestUpdateRecentRingNewestFirst(t *testing.T) {
	agg := New(newFakeStore(), Options{Now: fixedNow()})

	var last *SignerStats
	var lastSig types.Signature
	for i := 0; i < RecentTxCap+5; i++ {
		tx := classified(2, core.FeeSpam, uint64(100+i), false)
		lastSig = tx.Signature
		last = agg.Update(tx)
	}

	require.Len(t, last.Recent, RecentTxCap)
	assert.Equal(t, lastSig.String(), last.Recent[0].Signature, "最近交易应排在环首")
	assert.Equal(t, uint64(uint64(100+RecentTxCap+4)), last.Recent[0].TipLamports)
}

func TestUpdateTipSampleRingCapped(t *testing.T) {
	agg := New(newFakeStore(), Options{Now: fixedNow()})

	var last *SignerStats
	for i := 0; i < TipSampleCap+20; i++ {
		last = agg.Update(classified(3, core.FeeSpam, uint64(i+1), false))
	}

	ts := last.Tips[FeeKeySpam]
	require.Len(t, ts.Samples, TipSampleCap)
	// 样本环淘汰最旧，Min/Total 仍覆盖全量
	assert.Equal(t, uint64(21), ts.Samples[0])
	assert.Equal(t, uint64(1), ts.Min)
	assert.Equal(t, uint64(TipSampleCap+20), ts.Count)
}

func TestUpdateResumesFromStore(t *testing.T) {
	store := newFakeStore()
	now := fixedNow()

	first := New(store, Options{Now: now})
	first.Update(classified(4, core.FeeSpam, 500, false))

	// 新进程：同一存储，内存态为空，应从快照续写
	second := New(store, Options{Now: now})
	stats := second.Update(classified(4, core.FeeJito, 800, false))

	require.NotNil(t, stats)
	assert.Equal(t, uint64(2), stats.Transactions.Total)
	assert.Equal(t, uint64(1), stats.TransactionTypes.Spam)
	assert.Equal(t, uint64(1), stats.TransactionTypes.Jito)
}

func TestUpdateLoadErrorStartsFresh(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("backend down")
	agg := New(store, Options{Now: fixedNow()})

	stats := agg.Update(classified(5, core.FeeSpam, 100, false))
	require.NotNil(t, stats)
	assert.Equal(t, uint64(1), stats.Transactions.Total)
}

func TestUpdateSaveErrorDoesNotAbort(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	agg := New(store, Options{Now: fixedNow()})

	stats := agg.Update(classified(6, core.FeeSpam, 100, false))
	require.NotNil(t, stats)
	assert.Equal(t, uint64(1), stats.Transactions.Total)
}

func TestTargetSignerFilter(t *testing.T) {
	target := pk(7)
	agg := New(newFakeStore(), Options{
		TargetSigners: []string{target.String()},
		Now:           fixedNow(),
	})

	assert.Nil(t, agg.Update(classified(8, core.FeeSpam, 100, false)), "名单外 signer 不聚合")
	assert.NotNil(t, agg.Update(classified(7, core.FeeSpam, 100, false)))

	// 全局流水计数不受过滤影响
	assert.Equal(t, uint64(2), agg.TotalSeen())
	assert.Equal(t, 1, agg.GlobalSummary().Signers)
}

func TestAssetIndexConsistentWithSignerRecords(t *testing.T) {
	agg := New(newFakeStore(), Options{Now: fixedNow()})

	hot := pk(0xE1)
	cold := pk(0xE2)

	// hot: jito 10000 − spam 2000 = +8000；cold: −500
	agg.Update(withVenue(withMint(classified(9, core.FeeJito, 10000, false), hot), "Orca Whirlpool", pk(0xE3)))
	agg.Update(withMint(classified(9, core.FeeSpam, 2000, false), hot))
	agg.Update(withMint(classified(10, core.FeeSpam, 500, true), cold))

	top := agg.TopAssetsByProfit(0)
	require.Len(t, top, 2)
	assert.Equal(t, hot.String(), top[0].Address)
	assert.Equal(t, int64(8000), top[0].Profit)
	assert.Equal(t, uint64(2), top[0].TxCount)
	assert.Equal(t, cold.String(), top[1].Address)
	assert.Equal(t, int64(-500), top[1].Profit)
	assert.Equal(t, uint64(1), top[1].Fail)

	venues := agg.TopVenuesForAsset(hot.String(), 3)
	require.Len(t, venues, 1)
	assert.Equal(t, "Orca Whirlpool", venues[0].Name)
	assert.Equal(t, uint64(1), venues[0].Count)

	assert.Nil(t, agg.TopVenuesForAsset(pk(0xEE).String(), 3))

	sum := agg.GlobalSummary()
	assert.Equal(t, 2, sum.Signers)
	assert.Equal(t, 2, sum.Assets)
	assert.Equal(t, uint64(3), sum.Total)
	assert.Equal(t, uint64(10000), sum.JitoLamports)
	assert.Equal(t, uint64(2500), sum.SpamLamports)
}

func TestReplaySameSequenceYieldsIdenticalStats(t *testing.T) {
	// 同一交易序列在两份全新状态上回放，最终快照必须逐字段一致
	mint := pk(0xB1)
	pool := pk(0xB2)
	seq := []*core.ClassifiedTx{
		withVenue(withMint(classified(20, core.FeeSpam, 3000, false), mint), "Raydium v4", pool),
		withMint(classified(20, core.FeeJito, 9000, false), mint),
		classified(20, core.FeeUndetermined, 0, true),
		classified(20, core.FeeJito, 12000, false),
	}

	replay := func() *SignerStats {
		agg := New(newFakeStore(), Options{Now: fixedNow()})
		var last *SignerStats
		for _, tx := range seq {
			last = agg.Update(tx)
		}
		return last
	}

	first, err := json.Marshal(replay())
	require.NoError(t, err)
	second, err := json.Marshal(replay())
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestTipKeysMatchSnapshotFormat(t *testing.T) {
	// Tips 的键即落盘格式，消费方经由导出常量读取，改名会破坏历史快照
	assert.Equal(t, "spam", FeeKeySpam)
	assert.Equal(t, "jito", FeeKeyJito)
	assert.Equal(t, "unknown", FeeKeyUnknown)

	agg := New(newFakeStore(), Options{Now: fixedNow()})
	stats := agg.Update(classified(21, core.FeeSpam, 100, false))
	require.Contains(t, stats.Tips, FeeKeySpam)
	require.Contains(t, stats.Tips, FeeKeyJito)
}

func TestTopAssetsTruncation(t *testing.T) {
	agg := New(newFakeStore(), Options{Now: fixedNow()})
	for i := byte(0); i < 5; i++ {
		agg.Update(withMint(classified(11, core.FeeJito, uint64(i+1)*1000, false), pk(0xD0+i)))
	}
	top := agg.TopAssetsByProfit(3)
	require.Len(t, top, 3)
	assert.Equal(t, int64(5000), top[0].Profit)
	assert.Equal(t, int64(3000), top[2].Profit)
}

func TestSaveReport(t *testing.T) {
	store := newFakeStore()
	agg := New(store, Options{Now: fixedNow()})

	agg.Update(classified(12, core.FeeSpam, 100, false))
	agg.Update(classified(13, core.FeeJito, 200, false))

	require.NoError(t, agg.SaveReport())
	require.Len(t, store.reports, 1)

	r := store.reports[0]
	assert.Equal(t, 2, r.SignerCount)
	assert.Len(t, r.Signers, 2)
	assert.Contains(t, r.Signers, pk(12).String())
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	missing, err := store.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	agg := New(store, Options{Now: fixedNow()})
	mint := pk(0xC1)
	stats := agg.Update(withMint(classified(14, core.FeeJito, 4200, false), mint))
	require.NotNil(t, stats)

	loaded, err := store.Load(stats.Address)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, stats.Transactions, loaded.Transactions)
	assert.Equal(t, stats.Tips[FeeKeyJito].Total, loaded.Tips[FeeKeyJito].Total)
	require.Contains(t, loaded.Mints, mint.String())

	require.NoError(t, agg.SaveReport())
	// 报告文件与 signer 快照同目录
	rep, err := store.Load(stats.Address)
	require.NoError(t, err)
	require.NotNil(t, rep)
}
