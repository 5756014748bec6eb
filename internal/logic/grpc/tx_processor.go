package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"mev-monitor-sol/internal/logic/aggregator"
	"mev-monitor-sol/internal/logic/core"
	"mev-monitor-sol/internal/logic/txadapter"
	"mev-monitor-sol/internal/mq"
	"mev-monitor-sol/internal/svc"
	"mev-monitor-sol/internal/utils"
	"mev-monitor-sol/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

const (
	defaultSummaryEvery = 10
	altStatsLogInterval = 60 * time.Second
	kafkaDefaultTimeout = 5 * time.Second
	resolveTimeoutPerTx = 10 * time.Second
)

// TxProcessor 消费订阅流推来的交易，驱动完整分析管线：
// 适配 → 账户解析 → 分类 → 聚合持久化 → 日志/导出。
type TxProcessor struct {
	sc     *svc.ServiceContext
	txChan chan *pb.SubscribeUpdateTransaction

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	summaryEvery int
}

func NewTxProcessor(sc *svc.ServiceContext, txChan chan *pb.SubscribeUpdateTransaction) *TxProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	summaryEvery := sc.Config.AnalysisConf.SummaryEvery
	if summaryEvery <= 0 {
		summaryEvery = defaultSummaryEvery
	}

	return &TxProcessor{
		sc:           sc,
		txChan:       txChan,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		summaryEvery: summaryEvery,
	}
}

// Start 启动消费协程后立即返回，与流管理器的启动方式保持一致。
func (p *TxProcessor) Start() {
	go p.run()
}

func (p *TxProcessor) run() {
	defer close(p.done)

	p.sc.AltCache.StartSweeper(p.ctx)

	statsTicker := time.NewTicker(altStatsLogInterval)
	defer statsTicker.Stop()

	logger.Infof("[processor] started, summary every %d txs", p.summaryEvery)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-statsTicker.C:
			s := p.sc.AltCache.Stats()
			logger.Infof("[alt] cached=%d success=%d failure=%d hit_rate=%.2f",
				s.Cached, s.Success, s.Failure, s.HitRate)
		case update, ok := <-p.txChan:
			if !ok {
				return
			}
			p.safeProcess(update)
		}
	}
}

// Stop 停止消费并落盘汇总报告。
func (p *TxProcessor) Stop() {
	p.cancel()
	<-p.done

	if err := p.sc.Aggregator.SaveReport(); err != nil {
		logger.Errorf("[processor] save combined report failed: %v", err)
	} else {
		logger.Infof("[processor] combined report saved")
	}

	sum := p.sc.Aggregator.GlobalSummary()
	logger.Infof("[processor] final: signers=%d assets=%d txs=%d (%d ok / %d failed), spam=%d jito=%d",
		sum.Signers, sum.Assets, sum.Total, sum.Successful, sum.Failed, sum.Spam, sum.Jito)
}

// safeProcess 单笔交易的 panic 隔离边界：坏数据最多丢一笔，不拖垮进程。
func (p *TxProcessor) safeProcess(update *pb.SubscribeUpdateTransaction) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[processor] panic while processing tx at slot %d: %v", update.Slot, r)
		}
	}()

	if err := p.processTx(update); err != nil {
		logger.Warnf("[processor] skip tx at slot %d: %v", update.Slot, err)
	}
}

func (p *TxProcessor) processTx(update *pb.SubscribeUpdateTransaction) error {
	env, err := txadapter.AdaptGrpcTx(update.Slot, update.Transaction)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(p.ctx, resolveTimeoutPerTx)
	defer cancel()

	accounts := p.sc.Resolver.Resolve(ctx, env)
	classified := p.sc.Classifier.Classify(env, accounts)

	stats := p.sc.Aggregator.Update(classified)

	p.logTx(classified)
	if stats != nil && stats.Transactions.Total%uint64(p.summaryEvery) == 0 {
		p.logSignerSummary(stats)
	}

	p.export(classified)
	return nil
}

// logTx 每笔已分类交易输出一条结构化日志
func (p *TxProcessor) logTx(tx *core.ClassifiedTx) {
	status := "SUCCESS"
	if tx.Failed {
		status = "FAILED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[tx] %s slot=%d signer=%s %s",
		tx.Signature, tx.Slot, tx.Signer.Short(), status)

	switch tx.FeeCategory {
	case core.FeeSpam:
		fmt.Fprintf(&b, " SPAM tip=%d", tx.FeeLamports)
	case core.FeeJito:
		fmt.Fprintf(&b, " JITO tip=%d route=%s", tx.FeeLamports, tx.TipRoute)
	}

	if tx.Mint != nil {
		fmt.Fprintf(&b, " mint=%s", p.sc.Names.Display(*tx.Mint))
	}
	if len(tx.Venues) > 0 {
		venues := make([]string, 0, len(tx.Venues))
		for _, v := range tx.Venues {
			if v.Pool != nil {
				venues = append(venues, fmt.Sprintf("%s(%s)", v.Name, v.Pool.Short()))
			} else {
				venues = append(venues, v.Name)
			}
		}
		fmt.Fprintf(&b, " venues=%s", strings.Join(venues, ","))
	}

	logger.Infof("%s", b.String())
}

// logSignerSummary 周期性 signer 摘要：总量、小费区间、高频资产与池子
func (p *TxProcessor) logSignerSummary(s *aggregator.SignerStats) {
	logger.Infof("[summary] %s total=%d (%d ok / %d failed) spam=%d jito=%d",
		s.Address, s.Transactions.Total, s.Transactions.Successful, s.Transactions.Failed,
		s.TransactionTypes.Spam, s.TransactionTypes.Jito)

	if ts := s.Tips[aggregator.FeeKeySpam]; ts != nil && ts.Count > 0 {
		logger.Infof("[summary]   spam tips: %d-%d (avg %.0f)", ts.Min, ts.Max, ts.Average)
	}
	if ts := s.Tips[aggregator.FeeKeyJito]; ts != nil && ts.Count > 0 {
		logger.Infof("[summary]   jito tips: %d-%d (avg %.0f)", ts.Min, ts.Max, ts.Average)
	}

	for _, mu := range topMints(s, 3) {
		logger.Infof("[summary]   mint %s x%d (%d ok / %d failed)",
			p.sc.Names.DisplayString(mu.Address), mu.Count, mu.Success, mu.Fail)
	}
	for _, pu := range topPools(s, 3) {
		logger.Infof("[summary]   pool %s %s x%d", pu.DexName, shortAddr(pu.Address), pu.Count)
	}
}

// export 把已分类交易以 JSON 发往 Kafka（未启用时为空操作）
func (p *TxProcessor) export(tx *core.ClassifiedTx) {
	if p.sc.Producer == nil {
		return
	}

	value, err := json.Marshal(tx)
	if err != nil {
		logger.Errorf("[export] encode tx %s failed: %v", tx.Signature, err)
		return
	}

	cfg := p.sc.Config.KafkaConf
	partitions := uint32(cfg.Partitions)
	if partitions == 0 {
		partitions = 1
	}

	timeout := time.Duration(cfg.SendTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = kafkaDefaultTimeout
	}

	job := &mq.KafkaJob{
		Topic:     cfg.Topic,
		Partition: int32(utils.PartitionHashBytes(tx.Signature[:], partitions)),
		Key:       []byte(tx.Signature.String()),
		Value:     value,
	}
	if err := mq.SendKafkaJob(p.ctx, p.sc.Producer, job, timeout); err != nil {
		logger.Warnf("[export] send tx %s failed: %v", tx.Signature, err)
	}
}

func topMints(s *aggregator.SignerStats, n int) []*aggregator.MintUsage {
	out := make([]*aggregator.MintUsage, 0, len(s.Mints))
	for _, mu := range s.Mints {
		out = append(out, mu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topPools(s *aggregator.SignerStats, n int) []*aggregator.PoolUsage {
	out := make([]*aggregator.PoolUsage, 0, len(s.PoolContracts))
	for _, pu := range s.PoolContracts {
		out = append(out, pu)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func shortAddr(s string) string {
	if len(s) > 8 {
		return s[:8] + "..."
	}
	return s
}
