// Package decoder 提供纯函数形式的字节解码：公钥、签名与套利指令负载。
// 所有函数无副作用，相同输入必得相同输出。
package decoder

import (
	"encoding/base64"
	"errors"
	"fmt"

	"mev-monitor-sol/internal/types"

	"github.com/mr-tron/base58"
	"github.com/near/borsh-go"
)

var (
	ErrInvalidKeyLength = errors.New("decoder: pubkey must be 32 bytes")
	ErrPayloadTooShort  = errors.New("decoder: payload shorter than 17 bytes")
)

// PayloadSize 是套利指令负载的固定布局长度。
const PayloadSize = 17

// Payload 是套利指令 data 的固定小端布局。
// borsh 对定长整型的编码恰好就是该布局，按字段顺序反序列化即可。
type Payload struct {
	Discriminator     uint8
	MinProfitLamports uint64
	ComputeUnitLimit  uint32
	NoFailureFlag     uint8
	AdditionalFeeBp   uint16
	UseFlashloan      uint8
}

// Flashloan 返回负载是否启用闪电贷（决定固定账户前缀长度）。
func (p *Payload) Flashloan() bool {
	return p.UseFlashloan == 1
}

// DecodeKey 将原始 32 字节解码为 Pubkey；长度不符一律报错，绝不静默替换。
func DecodeKey(b []byte) (types.Pubkey, error) {
	if len(b) != 32 {
		return types.Pubkey{}, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(b))
	}
	var p types.Pubkey
	copy(p[:], b)
	return p, nil
}

// DecodeKeyString 解码 base64 文本形式的公钥（部分上游以文本推送字节字段）。
func DecodeKeyString(s string) (types.Pubkey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("decoder: bad base64 pubkey: %w", err)
	}
	return DecodeKey(raw)
}

// DecodeSignature 将签名规范化为统一的文本表示（base58）。
// 接受 64 字节原始数据；文本输入见 DecodeSignatureString。
func DecodeSignature(b []byte) (types.Signature, error) {
	return types.SignatureFromBytes(b)
}

// DecodeSignatureString 接受 base58 文本（透传校验）或 base64 文本。
func DecodeSignatureString(s string) (types.Signature, error) {
	if sig, err := types.TrySignatureFromBase58(s); err == nil {
		return sig, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return types.Signature{}, fmt.Errorf("decoder: signature is neither base58 nor base64: %w", err)
	}
	return types.SignatureFromBytes(raw)
}

// DecodePayload 按固定布局解析指令负载。
// 长度不足 17 字节返回 ErrPayloadTooShort；多余的尾部字节被忽略。
func DecodePayload(data []byte) (*Payload, error) {
	if len(data) < PayloadSize {
		return nil, fmt.Errorf("%w: got %d", ErrPayloadTooShort, len(data))
	}
	var p Payload
	if err := borsh.Deserialize(&p, data[:PayloadSize]); err != nil {
		return nil, fmt.Errorf("decoder: borsh deserialize payload: %w", err)
	}
	return &p, nil
}

// FlashloanFlagAt 按配置的偏移读取闪电贷标志。
// 历史版本的程序曾把该标志放在不同偏移（16 与 24 均出现过），
// 因此偏移是配置项而非常量；越界时返回 false。
func FlashloanFlagAt(data []byte, offset int) bool {
	if offset < 0 || offset >= len(data) {
		return false
	}
	return data[offset] == 1
}

// EncodeBase58 工具函数：任意字节的 base58 文本。
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}
