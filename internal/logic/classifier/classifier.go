// Package classifier 从已解析账户列表与指令中识别交易的经济指纹：
// 优先费策略（spam / jito）、被交易资产与触达的 DEX 场所。
package classifier

import (
	"strings"

	"mev-monitor-sol/internal/consts"
	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/internal/logic/decoder"
	"mev-monitor-sol/internal/types"
)

const (
	// 套利指令的固定账户前缀长度：钱包、基础币、手续费账户、
	// 钱包基础币账户、Token/System/ATA 程序，共 7 个；
	// 启用闪电贷时额外带上闪电贷程序与金库，共 9 个。
	prologueLen          = 7
	prologueLenFlashloan = 9

	// 当前程序版本的闪电贷标志偏移（历史版本为 24）
	defaultFlashloanFlagOffset = 16
)

// Config 汇集分类所需的全部约定数据。
// 白名单与偏移均为生态约定而非链上不变量，一律可配置。
// 余量与偏移用指针区分"未设置"与"显式零值"：nil 走编译期默认。
type Config struct {
	Program             types.Pubkey               // 目标套利程序
	TipAddresses        map[types.Pubkey]struct{}  // 小费地址白名单
	Venues              map[types.Pubkey]VenueRule // DEX 程序 → 布局策略
	MintSkipList        map[types.Pubkey]struct{}  // 不可能作为资产出现的地址
	TipSlackLamports    *uint64                    // 中转判定余量
	FailureLogMarker    string                     // 失败日志子串
	FlashloanFlagOffset *int                       // 闪电贷标志的字节偏移
}

type Classifier struct {
	cfg Config
	// notMint 汇总所有"该地址不可能是资产"的判定来源
	notMint map[types.Pubkey]struct{}
}

func New(cfg Config) *Classifier {
	if cfg.TipAddresses == nil {
		cfg.TipAddresses = make(map[types.Pubkey]struct{}, len(consts.JitoTipAddressesStr))
		for _, s := range consts.JitoTipAddressesStr {
			cfg.TipAddresses[types.PubkeyFromBase58(s)] = struct{}{}
		}
	}
	if cfg.Venues == nil {
		cfg.Venues = DefaultVenueRules()
	}
	if cfg.MintSkipList == nil {
		cfg.MintSkipList = consts.MintSkipList
	}
	if cfg.TipSlackLamports == nil {
		slack := uint64(consts.DefaultTipSlackLamports)
		cfg.TipSlackLamports = &slack
	}
	if cfg.FailureLogMarker == "" {
		cfg.FailureLogMarker = consts.DefaultFailureLogMarker
	}
	if cfg.FlashloanFlagOffset == nil {
		offset := defaultFlashloanFlagOffset
		cfg.FlashloanFlagOffset = &offset
	}
	if cfg.Program.IsZero() {
		cfg.Program = consts.ArbProgram
	}

	notMint := make(map[types.Pubkey]struct{}, len(cfg.Venues)+len(cfg.MintSkipList)+1)
	for p := range cfg.Venues {
		notMint[p] = struct{}{}
	}
	for p := range cfg.MintSkipList {
		notMint[p] = struct{}{}
	}
	notMint[cfg.Program] = struct{}{}

	return &Classifier{cfg: cfg, notMint: notMint}
}

// Classify 对单笔交易做经济行为分类。
// 任何形态异常只降级对应字段（undetermined / nil），绝不返回错误：
// 宽过滤的订阅流里，不含目标指令的交易是常态而非异常。
func (c *Classifier) Classify(env *core.TxEnvelope, accounts []core.ResolvedAccount) *core.ClassifiedTx {
	out := &core.ClassifiedTx{
		Signature: env.Signature,
		Slot:      env.Slot,
		Signer:    env.Signer(),
		Failed:    c.isFailed(env),
		Fee:       env.Fee,
		Compute:   env.Compute,
	}

	c.classifyFee(env, out)

	ix := c.findTargetInstruction(env, accounts)
	if ix == nil {
		return out
	}

	ixAccounts := projectInstructionAccounts(ix, accounts)
	prologue := c.prologueLen(ix.Data)

	out.Mint = c.extractMint(ixAccounts, prologue)
	out.Venues = c.extractVenues(ixAccounts, prologue)
	return out
}

// isFailed：日志中出现失败标记，或 meta 带显式执行错误。
func (c *Classifier) isFailed(env *core.TxEnvelope) bool {
	if env.MetaErr {
		return true
	}
	for _, line := range env.Logs {
		if strings.Contains(line, c.cfg.FailureLogMarker) {
			return true
		}
	}
	return false
}

// findTargetInstruction 定位程序 ID 等于目标程序的指令，找不到返回 nil。
func (c *Classifier) findTargetInstruction(env *core.TxEnvelope, accounts []core.ResolvedAccount) *core.RawInstruction {
	for i := range env.Instructions {
		ix := &env.Instructions[i]
		if int(ix.ProgramIdIndex) >= len(accounts) {
			continue // 程序下标越界，按无效指令跳过
		}
		if accounts[ix.ProgramIdIndex].Address == c.cfg.Program {
			return ix
		}
	}
	return nil
}

// projectInstructionAccounts 将指令的账户下标映射为地址；
// 越界下标以零值占位，保持指令内位置语义。
func projectInstructionAccounts(ix *core.RawInstruction, accounts []core.ResolvedAccount) []types.Pubkey {
	out := make([]types.Pubkey, len(ix.AccountIndexes))
	for i, idx := range ix.AccountIndexes {
		if int(idx) < len(accounts) {
			out[i] = accounts[idx].Address
		}
	}
	return out
}

// prologueLen 按闪电贷标志决定固定账户前缀长度。
// 负载解析失败按未启用闪电贷处理（降级而非中止）。
func (c *Classifier) prologueLen(data []byte) int {
	if _, err := decoder.DecodePayload(data); err != nil {
		return prologueLen
	}
	if decoder.FlashloanFlagAt(data, *c.cfg.FlashloanFlagOffset) {
		return prologueLenFlashloan
	}
	return prologueLen
}

// extractMint 取固定前缀之后的首个账户作为被交易资产。
// 该位置落在已知程序或系统账户上说明布局与预期不符，此时不记录资产。
func (c *Classifier) extractMint(ixAccounts []types.Pubkey, prologue int) *types.Pubkey {
	if prologue >= len(ixAccounts) {
		return nil
	}
	candidate := ixAccounts[prologue]
	if candidate.IsZero() {
		return nil
	}
	if _, ok := c.notMint[candidate]; ok {
		return nil
	}
	return &candidate
}

// extractVenues 在资产位置之后扫描 DEX 程序，并按各家族的偏移定位池子账户。
// 池子位置越界时仍记录场所但不带池子；按 (场所, 池子) 去重。
func (c *Classifier) extractVenues(ixAccounts []types.Pubkey, prologue int) []core.VenueRef {
	var venues []core.VenueRef
	seen := make(map[string]struct{})

	for i := prologue + 1; i < len(ixAccounts); i++ {
		rule, ok := c.cfg.Venues[ixAccounts[i]]
		if !ok {
			continue
		}
		ref := core.VenueRef{Name: rule.Name, Program: ixAccounts[i]}
		if j := i + rule.PoolOffset; j < len(ixAccounts) && !ixAccounts[j].IsZero() {
			pool := ixAccounts[j]
			ref.Pool = &pool
		}

		dedupeKey := ref.Name
		if ref.Pool != nil {
			dedupeKey += ":" + ref.Pool.String()
		}
		if _, dup := seen[dedupeKey]; dup {
			continue
		}
		seen[dedupeKey] = struct{}{}
		venues = append(venues, ref)
	}
	return venues
}

// classifyFee 基于 SOL 余额变化推导优先费策略：
//   - 全交易恰好一笔非零变化 → spam，金额为其绝对值；
//   - 否则存在流向小费白名单的正向变化 → jito，
//     并按 signer 支出与小费的差额区分直付与独立账户中转。
//
// 两类互斥：单笔变化的交易即便目标在白名单内也按 spam 计。
func (c *Classifier) classifyFee(env *core.TxEnvelope, out *core.ClassifiedTx) {
	deltas := env.SolDeltas
	nonZero := deltas[:0:0]
	for _, d := range deltas {
		if d.Delta != 0 {
			nonZero = append(nonZero, d)
		}
	}
	if len(nonZero) == 0 {
		return
	}

	if len(nonZero) == 1 {
		out.FeeCategory = core.FeeSpam
		out.FeeLamports = absLamports(nonZero[0].Delta)
		return
	}

	signer := out.Signer
	for _, d := range nonZero {
		if d.Delta <= 0 {
			continue
		}
		if _, ok := c.cfg.TipAddresses[d.Account]; !ok {
			continue
		}
		out.FeeCategory = core.FeeJito
		out.FeeLamports = uint64(d.Delta)
		out.TipRoute = core.TipRouteDirect
		for _, s := range nonZero {
			if s.Account == signer && s.Delta < 0 &&
				absLamports(s.Delta) > out.FeeLamports+*c.cfg.TipSlackLamports {
				out.TipRoute = core.TipRouteSeparateAccount
				break
			}
		}
		return
	}
}

func absLamports(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
