package consts

const (
	// LamportsPerSol 用于日志与报表中的金额换算
	LamportsPerSol = 1_000_000_000

	// MaxComputeUnits 单笔交易的计算单元上限（用于占比展示）
	MaxComputeUnits = 1_400_000
)
