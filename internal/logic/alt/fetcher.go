package alt

import (
	"context"
	"errors"
	"fmt"

	"mev-monitor-sol/internal/types"

	"github.com/blocto/solana-go-sdk/client"
)

// altMetaSize 是查找表账户的元数据长度，地址区从该偏移起按 32 字节排列。
const altMetaSize = 56

var ErrTableNotFound = errors.New("alt: lookup table account not found")

// RPCFetcher 通过 Solana RPC 拉取查找表账户并解析地址区。
type RPCFetcher struct {
	cli *client.Client
}

func NewRPCFetcher(endpoint string) *RPCFetcher {
	return &RPCFetcher{cli: client.NewClient(endpoint)}
}

func (f *RPCFetcher) FetchTable(ctx context.Context, table types.Pubkey) ([]types.Pubkey, error) {
	info, err := f.cli.GetAccountInfo(ctx, table.String())
	if err != nil {
		return nil, fmt.Errorf("alt: get account info %s: %w", table, err)
	}
	if len(info.Data) < altMetaSize {
		return nil, ErrTableNotFound
	}

	payload := info.Data[altMetaSize:]
	count := len(payload) / 32
	addresses := make([]types.Pubkey, count)
	for i := 0; i < count; i++ {
		copy(addresses[i][:], payload[i*32:(i+1)*32])
	}
	return addresses, nil
}
