package consts

import "mev-monitor-sol/internal/types"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgramStr   = "ComputeBudget111111111111111111111111111111"

	// 套利程序默认地址（可被配置覆盖）
	ArbProgramStr = "MEViEnscUm6tsQRoGd9h6nLQaQspKj7DB2M5FwM3Xvz"

	// 基础报价币
	WSOLMintStr = "So11111111111111111111111111111111111111112"
	USDCMintStr = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMintStr = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

var (
	// Programs
	SystemProgram          = types.PubkeyFromBase58(SystemProgramStr)
	TokenProgram           = types.PubkeyFromBase58(TokenProgramStr)
	TokenProgram2022       = types.PubkeyFromBase58(TokenProgram2022Str)
	AssociatedTokenProgram = types.PubkeyFromBase58(AssociatedTokenProgramStr)
	ComputeBudgetProgram   = types.PubkeyFromBase58(ComputeBudgetProgramStr)

	ArbProgram = types.PubkeyFromBase58(ArbProgramStr)

	// 报价币
	WSOLMint = types.PubkeyFromBase58(WSOLMintStr)
	USDCMint = types.PubkeyFromBase58(USDCMintStr)
	USDTMint = types.PubkeyFromBase58(USDTMintStr)
)

// MintSkipList 列出不可能作为被交易资产出现的系统地址。
// 指令账户布局与预期不符时，资产位置可能落在这些地址上，此时不记录资产。
var MintSkipList = map[types.Pubkey]struct{}{
	SystemProgram:          {},
	TokenProgram:           {},
	TokenProgram2022:       {},
	AssociatedTokenProgram: {},
	ComputeBudgetProgram:   {},
}
