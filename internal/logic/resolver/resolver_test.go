package resolver

import (
	"context"
	"testing"

	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTables 以固定映射模拟查找表解析
type fakeTables struct {
	tables map[types.Pubkey][]types.Pubkey
	calls  int
}

func (f *fakeTables) Resolve(_ context.Context, table types.Pubkey) ([]types.Pubkey, bool) {
	f.calls++
	addrs, ok := f.tables[table]
	return addrs, ok
}

func key(b byte) types.Pubkey {
	var p types.Pubkey
	p[0] = b
	return p
}

func keys(bs ...byte) []types.Pubkey {
	out := make([]types.Pubkey, len(bs))
	for i, b := range bs {
		out[i] = key(b)
	}
	return out
}

// assertDensePositions 校验位置为 [0,N) 连续且无重复
func assertDensePositions(t *testing.T, accounts []core.ResolvedAccount) {
	t.Helper()
	seen := make(map[uint32]bool, len(accounts))
	for i, acc := range accounts {
		assert.Equal(t, uint32(i), acc.Position)
		assert.False(t, seen[acc.Position], "duplicate position %d", acc.Position)
		seen[acc.Position] = true
	}
}

func TestResolveStaticOnly(t *testing.T) {
	env := &core.TxEnvelope{
		StaticKeys: keys(1, 2, 3, 4, 5),
		Header: core.MessageHeader{
			NumRequiredSignatures:       2,
			NumReadonlySignedAccounts:   1,
			NumReadonlyUnsignedAccounts: 2,
		},
	}

	accounts := New(nil).Resolve(context.Background(), env)
	require.Len(t, accounts, 5)
	assertDensePositions(t, accounts)

	// signer 区间：[0,2)；其中可写的只有前 2-1=1 个
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.True(t, accounts[1].IsSigner)
	assert.False(t, accounts[1].IsWritable)
	// 非 signer 区间：5-2=3 个，尾部 2 个只读
	assert.False(t, accounts[2].IsSigner)
	assert.True(t, accounts[2].IsWritable)
	assert.False(t, accounts[3].IsWritable)
	assert.False(t, accounts[4].IsWritable)
	for _, acc := range accounts {
		assert.Equal(t, core.OriginStatic, acc.Origin)
	}
}

func TestResolveEmptyTx(t *testing.T) {
	accounts := New(nil).Resolve(context.Background(), &core.TxEnvelope{})
	assert.Empty(t, accounts)
}

func TestResolvePreResolvedLoadedAddresses(t *testing.T) {
	// meta 已带解析结果时直接拼接，不触发查找表解析
	ft := &fakeTables{}
	env := &core.TxEnvelope{
		StaticKeys: keys(1, 2),
		Header:     core.MessageHeader{NumRequiredSignatures: 1},
		Lookups:    []core.TableLookup{{Table: key(9)}},
		Loaded: &core.LoadedAddresses{
			Writable: keys(10, 11),
			Readonly: keys(12),
		},
	}

	accounts := New(ft).Resolve(context.Background(), env)
	require.Len(t, accounts, 5)
	assertDensePositions(t, accounts)
	assert.Zero(t, ft.calls, "已带解析结果时不应访问查找表缓存")

	assert.Equal(t, key(10), accounts[2].Address)
	assert.Equal(t, core.OriginLoadedWritable, accounts[2].Origin)
	assert.True(t, accounts[3].IsWritable)
	assert.Equal(t, core.OriginLoadedReadonly, accounts[4].Origin)
	assert.False(t, accounts[4].IsWritable)
}

func TestResolveProjectsTableIndexes(t *testing.T) {
	// 可写下标 [2,5]、只读下标 [0] 投影到 6 地址表，追加顺序为 table[2], table[5], table[0]
	table := key(0xAA)
	ft := &fakeTables{tables: map[types.Pubkey][]types.Pubkey{
		table: keys(20, 21, 22, 23, 24, 25),
	}}
	env := &core.TxEnvelope{
		StaticKeys: keys(1, 2),
		Header:     core.MessageHeader{NumRequiredSignatures: 1},
		Lookups: []core.TableLookup{{
			Table:           table,
			WritableIndexes: []uint8{2, 5},
			ReadonlyIndexes: []uint8{0},
		}},
	}

	accounts := New(ft).Resolve(context.Background(), env)
	require.Len(t, accounts, 5)
	assertDensePositions(t, accounts)

	assert.Equal(t, key(22), accounts[2].Address)
	assert.Equal(t, key(25), accounts[3].Address)
	assert.Equal(t, key(20), accounts[4].Address)
	assert.Equal(t, core.OriginLoadedWritable, accounts[2].Origin)
	assert.Equal(t, core.OriginLoadedWritable, accounts[3].Origin)
	assert.Equal(t, core.OriginLoadedReadonly, accounts[4].Origin)
}

func TestResolveDistinctTableResolvedOnce(t *testing.T) {
	table := key(0xBB)
	ft := &fakeTables{tables: map[types.Pubkey][]types.Pubkey{
		table: keys(30, 31),
	}}
	env := &core.TxEnvelope{
		StaticKeys: keys(1),
		Header:     core.MessageHeader{NumRequiredSignatures: 1},
		Lookups: []core.TableLookup{
			{Table: table, WritableIndexes: []uint8{0}},
			{Table: table, ReadonlyIndexes: []uint8{1}},
		},
	}

	accounts := New(ft).Resolve(context.Background(), env)
	require.Len(t, accounts, 3)
	assert.Equal(t, 1, ft.calls, "同一表只解析一次")
	assert.Equal(t, key(30), accounts[1].Address)
	assert.Equal(t, key(31), accounts[2].Address)
}

func TestResolveFailedTableSkipped(t *testing.T) {
	good := key(0xC1)
	bad := key(0xC2)
	ft := &fakeTables{tables: map[types.Pubkey][]types.Pubkey{
		good: keys(40, 41),
	}}
	env := &core.TxEnvelope{
		StaticKeys: keys(1, 2, 3),
		Header:     core.MessageHeader{NumRequiredSignatures: 1},
		Lookups: []core.TableLookup{
			{Table: bad, WritableIndexes: []uint8{0, 1}},
			{Table: good, ReadonlyIndexes: []uint8{1}},
		},
	}

	accounts := New(ft).Resolve(context.Background(), env)
	// 失败表的账户整体缺席，位置依然连续
	require.Len(t, accounts, 4)
	assertDensePositions(t, accounts)
	assert.Equal(t, key(41), accounts[3].Address)
}

func TestResolveOutOfRangeIndexYieldsPlaceholder(t *testing.T) {
	table := key(0xD1)
	ft := &fakeTables{tables: map[types.Pubkey][]types.Pubkey{
		table: keys(50, 51),
	}}
	env := &core.TxEnvelope{
		StaticKeys: keys(1),
		Header:     core.MessageHeader{NumRequiredSignatures: 1},
		Lookups: []core.TableLookup{{
			Table:           table,
			WritableIndexes: []uint8{1, 9}, // 9 越界
		}},
	}

	accounts := New(ft).Resolve(context.Background(), env)
	require.Len(t, accounts, 3)
	assertDensePositions(t, accounts)
	assert.Equal(t, key(51), accounts[1].Address)
	assert.True(t, accounts[2].Unresolved)
	assert.True(t, accounts[2].Address.IsZero())
}
