package consts

import "mev-monitor-sol/internal/types"

// VenueDef 描述一个已知 DEX 程序及其池子账户的定位规则。
// PoolOffset 表示池子账户相对程序 ID 在指令账户列表中的偏移，
// 各协议的账户布局不同，偏移按协议家族单独维护。
type VenueDef struct {
	Name       string
	ProgramStr string
	PoolOffset int
}

// DefaultVenues 是默认的 DEX 程序白名单。
// 布局规则属于观察所得的生态约定，上游程序可能随版本调整，
// 因此整表支持通过配置覆盖。
var DefaultVenues = []VenueDef{
	{Name: "Raydium v4", ProgramStr: "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8", PoolOffset: 2},
	{Name: "Raydium CLMM", ProgramStr: "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK", PoolOffset: 2},
	{Name: "Raydium CLMM v2", ProgramStr: "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", PoolOffset: 2},
	{Name: "Raydium CPMM", ProgramStr: "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C", PoolOffset: 2},
	{Name: "Meteora DLMM", ProgramStr: "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo", PoolOffset: 2},
	{Name: "Orca Whirlpool", ProgramStr: "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc", PoolOffset: 1},
	{Name: "Pump.fun", ProgramStr: "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P", PoolOffset: 4},
}

// VenuePrograms 返回默认白名单中的程序地址集合。
func VenuePrograms() map[types.Pubkey]struct{} {
	m := make(map[types.Pubkey]struct{}, len(DefaultVenues))
	for _, v := range DefaultVenues {
		m[types.PubkeyFromBase58(v.ProgramStr)] = struct{}{}
	}
	return m
}
