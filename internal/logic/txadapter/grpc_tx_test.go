package txadapter

import (
	"testing"

	"mev-monitor-sol/internal/types"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyBytes(b byte) []byte {
	out := make([]byte, 32)
	out[0] = b
	return out
}

func sigBytes(b byte) []byte {
	out := make([]byte, 64)
	out[0] = b
	return out
}

// validTx 构造一笔最小的合法交易：2 静态账户、1 条指令、1 笔余额变化
func validTx() *pb.SubscribeUpdateTransactionInfo {
	return &pb.SubscribeUpdateTransactionInfo{
		Index: 3,
		Transaction: &pb.Transaction{
			Signatures: [][]byte{sigBytes(0xAB)},
			Message: &pb.Message{
				Header: &pb.MessageHeader{
					NumRequiredSignatures:       1,
					NumReadonlyUnsignedAccounts: 1,
				},
				AccountKeys: [][]byte{keyBytes(1), keyBytes(2)},
				Instructions: []*pb.CompiledInstruction{{
					ProgramIdIndex: 1,
					Accounts:       []byte{0, 1},
					Data:           []byte{7, 7},
				}},
			},
		},
		Meta: &pb.TransactionStatusMeta{
			Fee:          5000,
			PreBalances:  []uint64{100_000, 50},
			PostBalances: []uint64{94_000, 50},
			LogMessages:  []string{"Program log: ok"},
		},
	}
}

func TestAdaptGrpcTxBasic(t *testing.T) {
	env, err := AdaptGrpcTx(12345, validTx())
	require.NoError(t, err)

	assert.Equal(t, uint64(12345), env.Slot)
	assert.Equal(t, uint64(3), env.TxIndex)
	assert.Equal(t, uint32(1), env.Header.NumRequiredSignatures)
	require.Len(t, env.StaticKeys, 2)
	assert.Equal(t, env.StaticKeys[0], env.Signer())

	require.Len(t, env.Instructions, 1)
	assert.Equal(t, uint32(1), env.Instructions[0].ProgramIdIndex)
	assert.Equal(t, []uint8{0, 1}, env.Instructions[0].AccountIndexes)

	// 仅保留非零余额变化
	require.Len(t, env.SolDeltas, 1)
	assert.Equal(t, uint32(0), env.SolDeltas[0].Position)
	assert.Equal(t, int64(-6000), env.SolDeltas[0].Delta)
	assert.Equal(t, env.StaticKeys[0], env.SolDeltas[0].Account)

	assert.False(t, env.MetaErr)
	assert.Equal(t, uint64(5000), env.Fee)
	assert.Nil(t, env.Loaded)
	assert.Empty(t, env.Lookups)
}

func TestAdaptGrpcTxKeepsFailedTransaction(t *testing.T) {
	// 执行失败的交易是分析对象，适配不得拒绝
	tx := validTx()
	tx.Meta.Err = &pb.TransactionError{Err: []byte{1}}

	env, err := AdaptGrpcTx(1, tx)
	require.NoError(t, err)
	assert.True(t, env.MetaErr)
}

func TestAdaptGrpcTxLoadedAddresses(t *testing.T) {
	tx := validTx()
	tx.Transaction.Message.AddressTableLookups = []*pb.MessageAddressTableLookup{{
		AccountKey:      keyBytes(9),
		WritableIndexes: []byte{2, 5},
		ReadonlyIndexes: []byte{0},
	}}
	tx.Meta.LoadedWritableAddresses = [][]byte{keyBytes(10), keyBytes(11)}
	tx.Meta.LoadedReadonlyAddresses = [][]byte{keyBytes(12)}
	// 余额覆盖完整账户列表：2 静态 + 3 加载
	tx.Meta.PreBalances = []uint64{100, 0, 0, 7, 0}
	tx.Meta.PostBalances = []uint64{100, 0, 0, 3, 9}

	env, err := AdaptGrpcTx(1, tx)
	require.NoError(t, err)

	require.Len(t, env.Lookups, 1)
	assert.Equal(t, []uint8{2, 5}, env.Lookups[0].WritableIndexes)

	require.NotNil(t, env.Loaded)
	require.Len(t, env.Loaded.Writable, 2)
	require.Len(t, env.Loaded.Readonly, 1)

	// 加载区间的余额变化也能映射到地址
	require.Len(t, env.SolDeltas, 2)
	assert.Equal(t, uint32(3), env.SolDeltas[0].Position)
	assert.Equal(t, env.Loaded.Writable[1], env.SolDeltas[0].Account)
	assert.Equal(t, int64(-4), env.SolDeltas[0].Delta)
	assert.Equal(t, uint32(4), env.SolDeltas[1].Position)
	assert.Equal(t, env.Loaded.Readonly[0], env.SolDeltas[1].Account)
}

func TestAdaptGrpcTxComputeUnits(t *testing.T) {
	tx := validTx()
	units := uint64(420_000)
	tx.Meta.ComputeUnitsConsumed = &units

	env, err := AdaptGrpcTx(1, tx)
	require.NoError(t, err)
	assert.Equal(t, units, env.Compute)
}

func TestAdaptGrpcTxRejectsMalformed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(tx *pb.SubscribeUpdateTransactionInfo)
	}{
		{"nil transaction", func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Transaction = nil }},
		{"nil message", func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Transaction.Message = nil }},
		{"nil meta", func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Meta = nil }},
		{"no signatures", func(tx *pb.SubscribeUpdateTransactionInfo) { tx.Transaction.Signatures = nil }},
		{"short signature", func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Signatures = [][]byte{{1, 2, 3}}
		}},
		{"vote transaction", func(tx *pb.SubscribeUpdateTransactionInfo) { tx.IsVote = true }},
		{"short pubkey", func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.AccountKeys[1] = []byte{1, 2}
		}},
		{"zero signers", func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.Header.NumRequiredSignatures = 0
		}},
		{"signer count over accounts", func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.Header.NumRequiredSignatures = 9
		}},
		{"bad lookup key", func(tx *pb.SubscribeUpdateTransactionInfo) {
			tx.Transaction.Message.AddressTableLookups = []*pb.MessageAddressTableLookup{{AccountKey: []byte{1}}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTx()
			tc.mutate(tx)
			_, err := AdaptGrpcTx(1, tx)
			assert.Error(t, err)
		})
	}
}

func TestAdaptGrpcTxSignatureCanonical(t *testing.T) {
	env, err := AdaptGrpcTx(1, validTx())
	require.NoError(t, err)

	want, err := types.SignatureFromBytes(sigBytes(0xAB))
	require.NoError(t, err)
	assert.Equal(t, want, env.Signature)
}
