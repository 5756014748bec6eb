package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"mev-monitor-sol/internal/consts"
	"mev-monitor-sol/internal/svc"
	"mev-monitor-sol/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// GrpcStreamManager 维护到 Geyser 的订阅流：
// 建连、订阅目标程序的交易、心跳保活、断流重连。
type GrpcStreamManager struct {
	mu                    sync.Mutex
	conn                  *grpc.ClientConn
	client                pb.GeyserClient
	stream                pb.Geyser_SubscribeClient
	stopped               bool
	reconnectAttempts     int
	reconnectInterval     time.Duration
	xToken                string
	program               string // 订阅过滤的目标程序（base58）
	streamPingIntervalSec int
	txChan                chan *pb.SubscribeUpdateTransaction
	connCtx               context.Context
	connCancel            context.CancelFunc
	txRecvTimeoutSec      int
	sendTimeoutSec        int
}

func NewGrpcStreamManager(sc *svc.ServiceContext, txChan chan *pb.SubscribeUpdateTransaction) (*GrpcStreamManager, error) {
	grpcConf := sc.Config.Grpc

	configTls := &tls.Config{
		InsecureSkipVerify: true,
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(grpcConf.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		grpcConf.Endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(configTls)),
		grpc.WithInitialWindowSize(int32(grpcConf.InitialWindowSize)),
		grpc.WithInitialConnWindowSize(int32(grpcConf.InitialConnWindowSize)),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(grpcConf.MaxCallSendMsgSize),
			grpc.MaxCallRecvMsgSize(grpcConf.MaxCallRecvMsgSize),
		),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(grpcConf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(grpcConf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}

	program := sc.Config.ArbConf.ProgramID
	if program == "" {
		program = consts.ArbProgramStr
	}

	return &GrpcStreamManager{
		conn:                  conn,
		client:                pb.NewGeyserClient(conn),
		reconnectAttempts:     0,
		reconnectInterval:     time.Duration(grpcConf.ReconnectIntervalSec) * time.Second,
		xToken:                grpcConf.XToken,
		program:               program,
		streamPingIntervalSec: grpcConf.StreamPingIntervalSec,
		txChan:                txChan,
		txRecvTimeoutSec:      grpcConf.TxRecvTimeoutSec,
		sendTimeoutSec:        grpcConf.SendTimeoutSec,
	}, nil
}

func (m *GrpcStreamManager) Start() {
	m.mustConnect()
}

func (m *GrpcStreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
}

// 内部循环直到连接成功
func (m *GrpcStreamManager) mustConnect() {
	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if m.reconnectAttempts > 0 {
			if m.reconnectAttempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		logger.Infof("[grpc] connecting... attempt %d", m.reconnectAttempts+1)
		m.reconnectAttempts++
		err := m.connect()
		if err == nil {
			return
		}
		logger.Warnf("[grpc] connect failed: %v, will retry...", err)
	}
}

// buildSubscribeRequest 订阅触达目标程序的全部交易。
// 不过滤失败交易：失败的套利尝试正是分析对象之一。
func (m *GrpcStreamManager) buildSubscribeRequest() *pb.SubscribeRequest {
	transactions := make(map[string]*pb.SubscribeRequestFilterTransactions)
	transactions["arb_txs"] = &pb.SubscribeRequestFilterTransactions{
		Vote:           boolPtr(false),
		AccountInclude: []string{m.program},
	}
	// PROCESSED：最低确认级别，优先时效性
	commitment := pb.CommitmentLevel_PROCESSED
	return &pb.SubscribeRequest{
		Transactions: transactions,
		Commitment:   &commitment,
	}
}

// connect 只尝试一次连接
func (m *GrpcStreamManager) connect() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.New("manager is stopped")
	}
	defer m.mu.Unlock()

	// 先关闭旧的 context，优雅退出旧 goroutine
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		m.connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		logger.Warnf("[grpc] failed to subscribe: %v", err)
		return err
	}

	req := m.buildSubscribeRequest()
	err = sendWithTimeout(m.connCtx, stream.Send, req, time.Duration(m.sendTimeoutSec)*time.Second)
	if err != nil {
		logger.Warnf("[grpc] failed to send request: %v", err)
		return err
	}

	m.stream = stream
	m.reconnectAttempts = 0
	logger.Infof("[grpc] connection established, watching program %s", m.program)

	// 启动 ping 协程
	go m.pingLoop(m.connCtx)
	// 启动交易监听协程
	go m.txRecvLoop(m.connCtx)

	return nil
}

func (m *GrpcStreamManager) txRecvLoop(ctx context.Context) {
	last := time.Now()
	txTimeout := time.Duration(m.txRecvTimeoutSec) * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
			update, err := m.stream.Recv()
			now := time.Now()
			if err != nil {
				if errors.Is(err, io.EOF) {
					logger.Warnf("[grpc] stream closed by server (EOF), will reconnect")
					m.reconnect()
					return
				}

				logger.Warnf("[grpc] stream error: %v", err)
				if m.reconnectIfTxTimeout(last, txTimeout) {
					return
				}
				time.Sleep(100 * time.Millisecond)
				continue
			}

			switch u := update.GetUpdateOneof().(type) {
			case *pb.SubscribeUpdate_Transaction:
				select {
				case m.txChan <- u.Transaction:
				default:
					logger.Warnf("[grpc] txChan is full, discard tx at slot %d", u.Transaction.Slot)
				}
				last = now
			case *pb.SubscribeUpdate_Ping:
				// 服务端 pong，只用于保持流活跃
			}
		}

		if m.reconnectIfTxTimeout(last, txTimeout) {
			return
		}
	}
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// 心跳检测
func (m *GrpcStreamManager) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.streamPingIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingReq := &pb.SubscribeRequest{
				Ping: &pb.SubscribeRequestPing{Id: 1},
			}
			err := sendWithTimeout(ctx, m.stream.Send, pingReq, time.Duration(m.sendTimeoutSec)*time.Second)
			if err != nil {
				logger.Warnf("[grpc] ping failed: %v", err)
				// 这里只记录日志，不触发重连
			}
		}
	}
}

func (m *GrpcStreamManager) reconnectIfTxTimeout(last time.Time, timeout time.Duration) bool {
	if timeout > 0 && time.Since(last) > timeout {
		logger.Warnf("[grpc] no transaction within %v, reconnecting", timeout)
		m.reconnect()
		return true
	}
	return false
}

func (m *GrpcStreamManager) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}

func boolPtr(b bool) *bool {
	return &b
}
