package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"mev-monitor-sol/internal/config"
	"mev-monitor-sol/internal/logic/grpc"
	"mev-monitor-sol/internal/svc"
	"mev-monitor-sol/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/monitor.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.MonitorConfig
	conf.MustLoad(*configFile, &c)

	logger.Setup(c.LogConf.ToLogOption())

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		logger.Errorf("service context init failed: %v", err)
		os.Exit(1)
	}

	sg := zerosvc.NewServiceGroup()

	// txChan 不关闭：进程退出即终止，关闭反而可能与流侧的迟到写入竞争
	txChan := make(chan *pb.SubscribeUpdateTransaction, 512)

	streamService, err := grpc.NewGrpcStreamManager(serviceContext, txChan)
	if err != nil {
		logger.Errorf("grpc stream init failed: %v", err)
		os.Exit(1)
	}
	sg.Add(streamService)
	sg.Add(grpc.NewTxProcessor(serviceContext, txChan))

	logx.Infof("Starting mev monitor service")

	// 启动服务
	sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}
