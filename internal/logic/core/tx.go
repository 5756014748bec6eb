package core

import "mev-monitor-sol/internal/types"

// MessageHeader 对应交易 message.header 的四个计数字段，
// 账户的 signer / writable 标记全部由它推导。
type MessageHeader struct {
	NumRequiredSignatures       uint32
	NumReadonlySignedAccounts   uint32
	NumReadonlyUnsignedAccounts uint32
}

// TableLookup 表示交易声明的一条 Address Lookup Table 引用。
type TableLookup struct {
	Table           types.Pubkey // 查找表账户地址
	WritableIndexes []uint8      // 可写地址在表内的下标
	ReadonlyIndexes []uint8      // 只读地址在表内的下标
}

// LoadedAddresses 表示 meta 中已解析好的查找表地址（若上游已提供）。
type LoadedAddresses struct {
	Writable []types.Pubkey
	Readonly []types.Pubkey
}

// RawInstruction 表示 message 中的一条编译后指令，账户以下标引用。
type RawInstruction struct {
	ProgramIdIndex uint32
	AccountIndexes []uint8
	Data           []byte
}

// BalanceDelta 表示某账户在交易前后的 SOL 余额变化（post - pre）。
type BalanceDelta struct {
	Position uint32       // 账户在已解析账户列表中的位置
	Account  types.Pubkey // 账户地址（位置超出已解析列表时为零值）
	Delta    int64        // 余额变化量（lamports）
}

// TxEnvelope 是订阅推送的交易在系统边界统一归一化后的结构。
// 所有"这是哪种线上形态"的判断都收敛在 txadapter 中，
// 下游组件只面对该结构。
type TxEnvelope struct {
	Slot      uint64
	TxIndex   uint64
	Signature types.Signature

	Header     MessageHeader
	StaticKeys []types.Pubkey // message.accountKeys，已校验为 32 字节

	Lookups []TableLookup    // 交易声明的查找表引用
	Loaded  *LoadedAddresses // meta 已带的解析结果，nil 表示需要走缓存解析

	Instructions []RawInstruction

	SolDeltas []BalanceDelta // 按账户位置计算的 SOL 余额变化（仅非零项）
	Logs      []string       // meta.logMessages
	MetaErr   bool           // meta 中存在显式执行错误
	Fee       uint64
	Compute   uint64
}

// Signer 返回交易的第一个 signer（即交易发起者）。
func (e *TxEnvelope) Signer() types.Pubkey {
	if len(e.StaticKeys) == 0 {
		return types.Pubkey{}
	}
	return e.StaticKeys[0]
}
