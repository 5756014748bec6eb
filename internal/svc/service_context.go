package svc

import (
	"fmt"
	"time"

	"mev-monitor-sol/internal/config"
	"mev-monitor-sol/internal/logic/aggregator"
	"mev-monitor-sol/internal/logic/alt"
	"mev-monitor-sol/internal/logic/classifier"
	"mev-monitor-sol/internal/logic/resolver"
	"mev-monitor-sol/internal/mq"
	"mev-monitor-sol/internal/names"
	"mev-monitor-sol/internal/types"
	"mev-monitor-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// ServiceContext 包含监控服务的全部共享资源
type ServiceContext struct {
	Config     config.MonitorConfig
	AltCache   *alt.Cache
	Resolver   *resolver.Resolver
	Classifier *classifier.Classifier
	Aggregator *aggregator.Aggregator
	Names      *names.Table
	Producer   *kafka.Producer // Kafka 导出未启用时为 nil
}

// NewServiceContext 创建监控服务上下文
func NewServiceContext(c config.MonitorConfig) (*ServiceContext, error) {
	// 1. 地址查找表缓存（RPC 拉取 + 限流 + TTL）
	fetcher := alt.NewRPCFetcher(c.RpcEndpoint)
	cache := alt.NewCache(fetcher, alt.Options{
		TTL:            time.Duration(c.AltConf.TTLSec) * time.Second,
		SweepInterval:  time.Duration(c.AltConf.SweepIntervalSec) * time.Second,
		FetchTimeout:   time.Duration(c.AltConf.FetchTimeoutSec) * time.Second,
		MaxCallsPerSec: c.AltConf.MaxCallsPerSec,
	})

	// 2. 分类器（白名单与偏移来自配置，留空走编译期默认）
	clsCfg, err := buildClassifierConfig(c.ArbConf)
	if err != nil {
		return nil, err
	}

	// 3. 快照存储后端
	store, err := buildSnapshotStore(c)
	if err != nil {
		return nil, err
	}

	// 4. 展示名表（可选）
	nameTable, err := names.Load(c.AnalysisConf.KnownNamesFile)
	if err != nil {
		logger.Warnf("known-names file unavailable, falling back to short addresses: %v", err)
		nameTable = &names.Table{}
	}

	ctx := &ServiceContext{
		Config:     c,
		AltCache:   cache,
		Resolver:   resolver.New(cache),
		Classifier: classifier.New(clsCfg),
		Aggregator: aggregator.New(store, aggregator.Options{
			TargetSigners: c.AnalysisConf.TargetSigners,
		}),
		Names: nameTable,
	}

	// 5. Kafka 导出（可选）
	if c.KafkaConf.Enabled {
		producer, err := mq.NewKafkaProducer(c.KafkaConf)
		if err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		ctx.Producer = producer
	}

	return ctx, nil
}

func buildClassifierConfig(arb config.ArbConfig) (classifier.Config, error) {
	var cfg classifier.Config

	if arb.ProgramID != "" {
		p, err := types.TryPubkeyFromBase58(arb.ProgramID)
		if err != nil {
			return cfg, fmt.Errorf("invalid arb.program_id: %w", err)
		}
		cfg.Program = p
	}
	cfg.FlashloanFlagOffset = arb.FlashloanFlagOffset
	cfg.TipSlackLamports = arb.TipSlackLamports
	cfg.FailureLogMarker = arb.FailureLogMarker

	if len(arb.TipAddresses) > 0 {
		cfg.TipAddresses = make(map[types.Pubkey]struct{}, len(arb.TipAddresses))
		for _, s := range arb.TipAddresses {
			p, err := types.TryPubkeyFromBase58(s)
			if err != nil {
				return cfg, fmt.Errorf("invalid tip address %q: %w", s, err)
			}
			cfg.TipAddresses[p] = struct{}{}
		}
	}

	if len(arb.Venues) > 0 {
		cfg.Venues = make(map[types.Pubkey]classifier.VenueRule, len(arb.Venues))
		for _, v := range arb.Venues {
			p, err := types.TryPubkeyFromBase58(v.Program)
			if err != nil {
				return cfg, fmt.Errorf("invalid venue program %q: %w", v.Program, err)
			}
			cfg.Venues[p] = classifier.VenueRule{Name: v.Name, PoolOffset: v.PoolOffset}
		}
	}

	return cfg, nil
}

func buildSnapshotStore(c config.MonitorConfig) (aggregator.SnapshotStore, error) {
	switch c.AnalysisConf.Backend {
	case "redis":
		if c.RedisAddr == "" {
			return nil, fmt.Errorf("analysis.backend=redis requires redis_addr")
		}
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		return aggregator.NewRedisStore(rdb), nil
	case "", "file":
		dir := c.AnalysisConf.Dir
		if dir == "" {
			dir = "signer-analysis"
		}
		return aggregator.NewFileStore(dir)
	default:
		return nil, fmt.Errorf("unknown analysis.backend: %q", c.AnalysisConf.Backend)
	}
}
