package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Signature 是交易签名的 64 字节值类型，规范文本形式为 base58。
type Signature [64]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	parsed, err := TrySignatureFromBase58(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func TrySignatureFromBase58(str string) (Signature, error) {
	data, err := base58.Decode(str)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to decode base58 signature %q: %w", str, err)
	}
	if len(data) != 64 {
		return Signature{}, fmt.Errorf("invalid signature length: got %d, want 64", len(data))
	}
	var s Signature
	copy(s[:], data)
	return s, nil
}

// SignatureFromBytes 从原始 64 字节构造 Signature。
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != 64 {
		return Signature{}, fmt.Errorf("invalid signature length: got %d, want 64", len(b))
	}
	var s Signature
	copy(s[:], b)
	return s, nil
}
