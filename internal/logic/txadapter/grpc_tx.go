// Package txadapter 将 gRPC 推送的原始交易转换为内部 TxEnvelope 结构。
// 与上游 proto 的耦合全部收敛在这一层，下游只见内部类型。
package txadapter

import (
	"fmt"

	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// ValidateGrpcTx 基本形态校验。
// 注意：执行失败（Meta.Err 非空）的交易是本服务的分析对象，不在这里拒绝。
func ValidateGrpcTx(tx *pb.SubscribeUpdateTransactionInfo) error {
	if tx == nil {
		return fmt.Errorf("nil transaction info")
	}
	if tx.Transaction == nil {
		return fmt.Errorf("missing Transaction field")
	}
	if tx.Transaction.Message == nil {
		return fmt.Errorf("missing Message field in transaction")
	}
	if len(tx.Transaction.Signatures) == 0 {
		return fmt.Errorf("missing transaction signature")
	}
	if len(tx.Transaction.Signatures[0]) != 64 {
		return fmt.Errorf("invalid transaction signature length: %d", len(tx.Transaction.Signatures[0]))
	}
	if tx.IsVote {
		return fmt.Errorf("vote transaction skipped")
	}
	if tx.Meta == nil {
		return fmt.Errorf("missing transaction meta data")
	}
	return nil
}

// buildStaticKeys 校验并拷贝 message.accountKeys。
// 一次性预分配，顺序写入，供后续按下标索引。
func buildStaticKeys(accountKeys [][]byte) ([]types.Pubkey, error) {
	pubkeys := make([]types.Pubkey, len(accountKeys))
	for i, b := range accountKeys {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey in accountKeys at index %d", i)
		}
		copy(pubkeys[i][:], b)
	}
	return pubkeys, nil
}

// buildLookups 转换地址查找表声明（表地址 + 可写/只读下标）
func buildLookups(raw []*pb.MessageAddressTableLookup) ([]core.TableLookup, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	lookups := make([]core.TableLookup, 0, len(raw))
	for i, l := range raw {
		if len(l.AccountKey) != 32 {
			return nil, fmt.Errorf("invalid lookup table key at index %d", i)
		}
		var table types.Pubkey
		copy(table[:], l.AccountKey)
		lookups = append(lookups, core.TableLookup{
			Table:           table,
			WritableIndexes: append([]uint8(nil), l.WritableIndexes...),
			ReadonlyIndexes: append([]uint8(nil), l.ReadonlyIndexes...),
		})
	}
	return lookups, nil
}

// buildLoadedAddresses 转换 meta 已解析好的查找表地址。
// 两个列表均为空时返回 nil，交由下游按声明的查找表自行解析。
func buildLoadedAddresses(writable, readonly [][]byte) (*core.LoadedAddresses, error) {
	if len(writable) == 0 && len(readonly) == 0 {
		return nil, nil
	}
	loaded := &core.LoadedAddresses{
		Writable: make([]types.Pubkey, len(writable)),
		Readonly: make([]types.Pubkey, len(readonly)),
	}
	for i, b := range writable {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey in loadedWritable at index %d", i)
		}
		copy(loaded.Writable[i][:], b)
	}
	for i, b := range readonly {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey in loadedReadonly at index %d", i)
		}
		copy(loaded.Readonly[i][:], b)
	}
	return loaded, nil
}

// buildInstructions 转换主指令列表，保留原始下标形式。
// 下标到地址的投影由 resolver 产出账户列表后进行。
func buildInstructions(raw []*pb.CompiledInstruction) []core.RawInstruction {
	instructions := make([]core.RawInstruction, 0, len(raw))
	for _, inst := range raw {
		instructions = append(instructions, core.RawInstruction{
			ProgramIdIndex: inst.ProgramIdIndex,
			AccountIndexes: append([]uint8(nil), inst.Accounts...),
			Data:           inst.Data,
		})
	}
	return instructions
}

// buildSolDeltas 由 pre/post lamports 余额差构建非零变化列表。
// 位置下标基于完整账户列表（静态 + 查找表加载）；
// 地址在适配期能确定多少填多少，静态区间直接取，加载区间查 loaded。
func buildSolDeltas(
	pre, post []uint64,
	staticKeys []types.Pubkey,
	loaded *core.LoadedAddresses,
) []core.BalanceDelta {
	n := len(pre)
	if len(post) < n {
		n = len(post)
	}

	var deltas []core.BalanceDelta
	for i := 0; i < n; i++ {
		delta := int64(post[i]) - int64(pre[i])
		if delta == 0 {
			continue
		}
		d := core.BalanceDelta{Position: uint32(i), Delta: delta}
		if addr, ok := accountAt(i, staticKeys, loaded); ok {
			d.Account = addr
		}
		deltas = append(deltas, d)
	}
	return deltas
}

func accountAt(i int, staticKeys []types.Pubkey, loaded *core.LoadedAddresses) (types.Pubkey, bool) {
	if i < len(staticKeys) {
		return staticKeys[i], true
	}
	if loaded == nil {
		return types.Pubkey{}, false
	}
	i -= len(staticKeys)
	if i < len(loaded.Writable) {
		return loaded.Writable[i], true
	}
	i -= len(loaded.Writable)
	if i < len(loaded.Readonly) {
		return loaded.Readonly[i], true
	}
	return types.Pubkey{}, false
}

// AdaptGrpcTx 将 gRPC 推送的交易解析为内部 TxEnvelope。
// 完整流程：
//  1. 构建静态账户列表与查找表声明；
//  2. 转换指令（保留下标形式）；
//  3. 由 pre/post lamports 差构建 SOL 余额变化；
//  4. 如 panic 会被 recover，单笔坏数据不拖垮进程。
func AdaptGrpcTx(slot uint64, tx *pb.SubscribeUpdateTransactionInfo) (_ *core.TxEnvelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("AdaptGrpcTx panic: %v", r)
		}
	}()

	if err := ValidateGrpcTx(tx); err != nil {
		return nil, err
	}

	msg := tx.Transaction.Message

	staticKeys, err := buildStaticKeys(msg.AccountKeys)
	if err != nil {
		return nil, fmt.Errorf("buildStaticKeys error: %w", err)
	}
	if len(staticKeys) == 0 {
		return nil, fmt.Errorf("invalid transaction: empty accountKeys")
	}

	var header core.MessageHeader
	if msg.Header != nil {
		header = core.MessageHeader{
			NumRequiredSignatures:       msg.Header.NumRequiredSignatures,
			NumReadonlySignedAccounts:   msg.Header.NumReadonlySignedAccounts,
			NumReadonlyUnsignedAccounts: msg.Header.NumReadonlyUnsignedAccounts,
		}
	}
	if header.NumRequiredSignatures == 0 || int(header.NumRequiredSignatures) > len(staticKeys) {
		return nil, fmt.Errorf("invalid signer count: %d", header.NumRequiredSignatures)
	}

	lookups, err := buildLookups(msg.AddressTableLookups)
	if err != nil {
		return nil, err
	}
	loaded, err := buildLoadedAddresses(tx.Meta.LoadedWritableAddresses, tx.Meta.LoadedReadonlyAddresses)
	if err != nil {
		return nil, err
	}

	sig, err := types.SignatureFromBytes(tx.Transaction.Signatures[0])
	if err != nil {
		return nil, err
	}

	env := &core.TxEnvelope{
		Slot:         slot,
		TxIndex:      tx.Index,
		Signature:    sig,
		Header:       header,
		StaticKeys:   staticKeys,
		Lookups:      lookups,
		Loaded:       loaded,
		Instructions: buildInstructions(msg.Instructions),
		SolDeltas:    buildSolDeltas(tx.Meta.PreBalances, tx.Meta.PostBalances, staticKeys, loaded),
		Logs:         tx.Meta.LogMessages,
		MetaErr:      tx.Meta.Err != nil,
		Fee:          tx.Meta.Fee,
	}
	if tx.Meta.ComputeUnitsConsumed != nil {
		env.Compute = *tx.Meta.ComputeUnitsConsumed
	}
	return env, nil
}
