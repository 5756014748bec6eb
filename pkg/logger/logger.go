package logger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数，来自配置文件
type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 为空时仅输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩轮转出的旧日志
}

var sugar *zap.SugaredLogger = zap.NewNop().Sugar()

// Setup 初始化全局 zap logger（含 lumberjack 轮转），并将 go-zero logx 指向同一输出。
// 进程内只应调用一次。
func Setup(opt LogOption) error {
	level := zapcore.InfoLevel
	switch strings.ToLower(opt.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opt.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return err
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, "monitor.log"),
			MaxSize:    256, // MB
			MaxBackups: 10,
			MaxAge:     7, // days
			Compress:   opt.Compress,
		}
		syncers = append(syncers, zapcore.AddSync(rotator))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(syncers...), level)
	sugar = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()

	// logx 与 zap 共用同一底层输出，logic 层沿用 logx 风格即可
	logx.SetWriter(logx.NewWriter(&zapBridge{}))
	return nil
}

// zapBridge 让 logx 的输出走 zap 管线
type zapBridge struct{}

func (*zapBridge) Write(p []byte) (int, error) {
	sugar.Desugar().WithOptions(zap.AddCallerSkip(2)).Sugar().Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func Sync() {
	_ = sugar.Sync()
}

func Debugf(format string, args ...any) { sugar.Debugf(format, args...) }
func Infof(format string, args ...any)  { sugar.Infof(format, args...) }
func Warnf(format string, args ...any)  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...any) { sugar.Errorf(format, args...) }
