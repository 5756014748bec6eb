package core

import "mev-monitor-sol/internal/types"

// AccountOrigin 标记已解析账户的来源。
type AccountOrigin uint8

const (
	OriginStatic AccountOrigin = iota // message.accountKeys 内联账户
	OriginLoadedWritable
	OriginLoadedReadonly
)

func (o AccountOrigin) String() string {
	switch o {
	case OriginStatic:
		return "static"
	case OriginLoadedWritable:
		return "loaded-writable"
	case OriginLoadedReadonly:
		return "loaded-readonly"
	}
	return "unknown"
}

// ResolvedAccount 是账户重建后的最终形态。
// 不变量：同一交易内 Position 从 0 起连续且唯一。
type ResolvedAccount struct {
	Position   uint32
	Address    types.Pubkey
	IsSigner   bool
	IsWritable bool
	Origin     AccountOrigin
	Unresolved bool // 查找表内下标越界等原因无法取回地址，仅占位保序
}

// FeeCategory 是交易的优先费策略分类。
type FeeCategory uint8

const (
	FeeUndetermined FeeCategory = iota
	FeeSpam                     // 全交易仅一笔非零余额变化
	FeeJito                     // 存在流向小费白名单地址的正向余额变化
)

func (c FeeCategory) String() string {
	switch c {
	case FeeSpam:
		return "spam"
	case FeeJito:
		return "jito"
	}
	return "unknown"
}

func (c FeeCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// TipRoute 细分 Jito 小费的支付路径。
type TipRoute uint8

const (
	TipRouteNone TipRoute = iota
	TipRouteDirect
	TipRouteSeparateAccount // signer 支出明显大于小费，经由独立账户中转
)

func (r TipRoute) String() string {
	switch r {
	case TipRouteDirect:
		return "direct"
	case TipRouteSeparateAccount:
		return "separate_account"
	}
	return ""
}

func (r TipRoute) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// VenueRef 表示交易触达的一个 DEX 场所。
type VenueRef struct {
	Name    string        `json:"name"`
	Program types.Pubkey  `json:"program"`
	Pool    *types.Pubkey `json:"pool,omitempty"` // 布局越界时缺失
}

// ClassifiedTx 是单笔交易经济行为分类的最终产物。
// 任何派生字段解析失败都只会降级为零值/缺失，不影响其余字段。
// JSON 形态即 Kafka 导出格式。
type ClassifiedTx struct {
	Signature types.Signature `json:"signature"`
	Slot      uint64          `json:"slot"`
	Signer    types.Pubkey    `json:"signer"`
	Failed    bool            `json:"failed"`

	FeeCategory FeeCategory `json:"feeCategory"`
	FeeLamports uint64      `json:"feeLamports"`
	TipRoute    TipRoute    `json:"tipRoute,omitempty"`

	Mint   *types.Pubkey `json:"mint,omitempty"` // 被交易资产，无法定位时为 nil
	Venues []VenueRef    `json:"venues,omitempty"`

	Fee     uint64 `json:"fee"`     // 网络手续费（lamports）
	Compute uint64 `json:"compute"` // 实际消耗的计算单元
}
