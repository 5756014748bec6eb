package consts

// JitoTipAddressesStr 是 Jito 小费账户的默认白名单。
// 该名单属于生态约定而非链上不变量，支持通过配置覆盖。
var JitoTipAddressesStr = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

const (
	// DefaultTipSlackLamports 判定"经由中转账户支付小费"的余量：
	// signer 支出超过小费金额加该余量时视为独立转账账户。
	DefaultTipSlackLamports = 5000

	// DefaultFailureLogMarker 套利程序未找到机会时输出的日志子串
	DefaultFailureLogMarker = "No profitable arbitrage opportunity found"
)
