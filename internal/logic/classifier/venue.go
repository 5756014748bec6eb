package classifier

import (
	"mev-monitor-sol/internal/consts"
	"mev-monitor-sol/internal/types"
)

// VenueRule 是单个 DEX 家族的账户布局策略：
// 程序 ID 命中后，池子账户位于程序 ID 之后 PoolOffset 个位置。
// 各家族的偏移独立维护，布局修正只需改动对应条目。
type VenueRule struct {
	Name       string
	PoolOffset int
}

// DefaultVenueRules 由 consts 中的默认白名单构建。
func DefaultVenueRules() map[types.Pubkey]VenueRule {
	rules := make(map[types.Pubkey]VenueRule, len(consts.DefaultVenues))
	for _, v := range consts.DefaultVenues {
		rules[types.PubkeyFromBase58(v.ProgramStr)] = VenueRule{
			Name:       v.Name,
			PoolOffset: v.PoolOffset,
		}
	}
	return rules
}
