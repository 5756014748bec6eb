// Package resolver 重建交易引用的完整账户列表：
// 内联静态账户在前，查找表加载账户在后（先可写、后只读）。
package resolver

import (
	"context"

	"mev-monitor-sol/internal/logic/alt"
	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/internal/types"
	"mev-monitor-sol/pkg/logger"
)

// TableResolver 是查找表地址的解析依赖，生产实现为 alt.Cache。
type TableResolver interface {
	Resolve(ctx context.Context, table types.Pubkey) ([]types.Pubkey, bool)
}

var _ TableResolver = (*alt.Cache)(nil)

// Resolver 将交易的静态账户与查找表账户合并为按位置索引的最终列表。
// tables 为 nil 时不做查找表解析，仅使用信封自带的数据。
type Resolver struct {
	tables TableResolver
}

func New(tables TableResolver) *Resolver {
	return &Resolver{tables: tables}
}

// Resolve 生成交易的已解析账户数组。
// 保证：输出位置为 [0, N) 且连续无重复；静态账户保持原始顺序；
// 信封已带解析结果时直接采用，否则逐表经缓存解析，
// 单表解析失败只丢失该表的账户，交易继续以静态账户为准。
func (r *Resolver) Resolve(ctx context.Context, env *core.TxEnvelope) []core.ResolvedAccount {
	out := make([]core.ResolvedAccount, 0, len(env.StaticKeys))

	staticCount := uint32(len(env.StaticKeys))
	for i, key := range env.StaticKeys {
		pos := uint32(i)
		out = append(out, core.ResolvedAccount{
			Position:   pos,
			Address:    key,
			IsSigner:   isSigner(pos, env.Header),
			IsWritable: isWritable(pos, staticCount, env.Header),
			Origin:     core.OriginStatic,
		})
	}

	// 上游已解析好的地址直接拼接：先可写批次，后只读批次
	if env.Loaded != nil {
		for _, addr := range env.Loaded.Writable {
			out = append(out, loadedAccount(uint32(len(out)), addr, core.OriginLoadedWritable))
		}
		for _, addr := range env.Loaded.Readonly {
			out = append(out, loadedAccount(uint32(len(out)), addr, core.OriginLoadedReadonly))
		}
		return out
	}

	if len(env.Lookups) == 0 || r.tables == nil {
		return out
	}

	// 按声明顺序逐表解析；同一表内先投影可写下标，再投影只读下标
	resolved := make(map[types.Pubkey][]types.Pubkey, len(env.Lookups))
	for _, lookup := range env.Lookups {
		if _, ok := resolved[lookup.Table]; ok {
			continue
		}
		addrs, ok := r.tables.Resolve(ctx, lookup.Table)
		if !ok {
			logger.Warnf("[resolver] lookup table unavailable, proceeding without it: table=%s sig=%s",
				lookup.Table.Short(), env.Signature)
			continue
		}
		resolved[lookup.Table] = addrs
	}

	for _, lookup := range env.Lookups {
		addrs, ok := resolved[lookup.Table]
		if !ok {
			continue // 表解析失败，该表的账户整体缺席
		}
		for _, idx := range lookup.WritableIndexes {
			out = append(out, projectTableAccount(uint32(len(out)), addrs, idx, core.OriginLoadedWritable))
		}
		for _, idx := range lookup.ReadonlyIndexes {
			out = append(out, projectTableAccount(uint32(len(out)), addrs, idx, core.OriginLoadedReadonly))
		}
	}
	return out
}

// projectTableAccount 取表内下标对应的地址；下标越界时输出占位项，
// 保持位置连续，下游按位置索引的逻辑不受影响。
func projectTableAccount(pos uint32, addrs []types.Pubkey, idx uint8, origin core.AccountOrigin) core.ResolvedAccount {
	if int(idx) >= len(addrs) {
		return core.ResolvedAccount{
			Position:   pos,
			Origin:     origin,
			IsWritable: origin == core.OriginLoadedWritable,
			Unresolved: true,
		}
	}
	return loadedAccount(pos, addrs[idx], origin)
}

func loadedAccount(pos uint32, addr types.Pubkey, origin core.AccountOrigin) core.ResolvedAccount {
	return core.ResolvedAccount{
		Position:   pos,
		Address:    addr,
		IsWritable: origin == core.OriginLoadedWritable,
		Origin:     origin,
	}
}

// isSigner：前 numRequiredSignatures 个静态账户为 signer。
func isSigner(pos uint32, h core.MessageHeader) bool {
	return pos < h.NumRequiredSignatures
}

// isWritable 按 header 的边界算术推导静态账户可写性：
// signer 区间的前段可写，非 signer 区间的尾部只读。
func isWritable(pos, staticCount uint32, h core.MessageHeader) bool {
	if pos < h.NumRequiredSignatures {
		return pos < h.NumRequiredSignatures-h.NumReadonlySignedAccounts
	}
	return pos < staticCount-h.NumReadonlyUnsignedAccounts
}
