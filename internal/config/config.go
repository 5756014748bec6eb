package config

import (
	"mev-monitor-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// AltConfig 地址查找表缓存配置
type AltConfig struct {
	TTLSec           int `yaml:"ttl_sec"`            // 缓存条目有效期（秒）
	SweepIntervalSec int `yaml:"sweep_interval_sec"` // 过期清理周期（秒）
	MaxCallsPerSec   int `yaml:"max_calls_per_sec"`  // RPC 限速（次/秒）
	FetchTimeoutSec  int `yaml:"fetch_timeout_sec"`  // 单次拉表超时（秒）
}

// VenueConfig 单个 DEX 场所的识别配置
type VenueConfig struct {
	Name       string `yaml:"name"`        // 展示名，如 "Raydium v4"
	Program    string `yaml:"program"`     // 程序 ID（base58）
	PoolOffset int    `yaml:"pool_offset"` // 池子账户相对程序 ID 的偏移
}

// ArbConfig 套利程序识别与分类相关配置。
// 全部留空时使用编译期默认值（当前主网约定）。
// 偏移与余量为指针：缺省（nil）走默认值，显式写 0 保持 0。
type ArbConfig struct {
	ProgramID           string        `yaml:"program_id"`            // 目标套利程序（base58）
	FlashloanFlagOffset *int          `yaml:"flashloan_flag_offset"` // 闪电贷标志字节偏移（历史版本为 24）
	TipSlackLamports    *uint64       `yaml:"tip_slack_lamports"`    // 小费中转判定余量
	FailureLogMarker    string        `yaml:"failure_log_marker"`    // 失败日志子串
	TipAddresses        []string      `yaml:"tip_addresses"`         // 小费地址白名单（base58）
	Venues              []VenueConfig `yaml:"venues"`                // DEX 场所白名单
}

// AnalysisConfig 聚合与快照持久化配置
type AnalysisConfig struct {
	Dir            string   `yaml:"dir"`              // file 后端的快照目录
	Backend        string   `yaml:"backend"`          // "file" 或 "redis"
	SummaryEvery   int      `yaml:"summary_every"`    // 每 N 笔交易输出一次 signer 摘要
	TargetSigners  []string `yaml:"target_signers"`   // 可选：只聚合这些 signer
	KnownNamesFile string   `yaml:"known_names_file"` // 可选：地址展示名 yaml
}

// KafkaExportConfig 已分类交易的 Kafka 导出配置
type KafkaExportConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Brokers       string `yaml:"brokers"`    // 多个用英文逗号分隔
	Topic         string `yaml:"topic"`      // 导出 topic
	Partitions    int    `yaml:"partitions"` // topic 分区数
	BatchSize     int    `yaml:"batch_size"` // 批处理大小（字节）
	LingerMs      int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）
	SendTimeoutMs int    `yaml:"send_timeout_ms"`
}

// MonitorConfig 是主配置结构体，驱动监控服务
type MonitorConfig struct {
	LogConf      LogConfig         `yaml:"logger"`
	AltConf      AltConfig         `yaml:"alt"`
	ArbConf      ArbConfig         `yaml:"arb"`
	AnalysisConf AnalysisConfig    `yaml:"analysis"`
	KafkaConf    KafkaExportConfig `yaml:"kafka_export"`

	RpcEndpoint string `yaml:"rpc_endpoint"` // 查找表拉取用的 JSON-RPC 地址
	RedisAddr   string `yaml:"redis_addr"`   // redis 后端地址（backend=redis 时必填）

	// gRPC 客户端连接相关配置
	Grpc struct {
		Endpoint string `yaml:"endpoint"` // gRPC 服务端地址
		XToken   string `yaml:"x_token"`  // x-token 认证

		// 应用级逻辑心跳（ping）配置
		StreamPingIntervalSec int `yaml:"stream_ping_interval_sec"` // 应用层 ping 心跳间隔（秒）

		// gRPC Keepalive 底层连接检测配置
		KeepalivePingIntervalSec int `yaml:"keepalive_ping_interval_sec"` // 底层 keepalive 间隔（秒）
		KeepalivePingTimeoutSec  int `yaml:"keepalive_ping_timeout_sec"`  // 底层 keepalive 超时（秒）

		// gRPC 窗口大小调优（用于大数据流推送）
		InitialWindowSize     int `yaml:"initial_window_size"`      // 单流窗口大小（字节）
		InitialConnWindowSize int `yaml:"initial_conn_window_size"` // 整体连接窗口大小（字节）

		// 消息体大小限制
		MaxCallSendMsgSize int `yaml:"max_call_send_msg_size"` // 单条消息最大发送字节数
		MaxCallRecvMsgSize int `yaml:"max_call_recv_msg_size"` // 单条消息最大接收字节数

		// 超时与重连策略
		ReconnectIntervalSec int `yaml:"reconnect_interval_sec"` // 重连最小间隔（秒）
		ConnectTimeoutSec    int `yaml:"connect_timeout_sec"`    // 连接建立超时（秒）
		SendTimeoutSec       int `yaml:"send_timeout_sec"`       // 发送超时（秒）
		TxRecvTimeoutSec     int `yaml:"tx_recv_timeout_sec"`    // 超过该时长未收到交易则重连（秒）
	} `yaml:"grpc"`
}
