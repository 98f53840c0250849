package logger

import (
	"os"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level         string // debug/info/warn/error
	Format        string // json/console
	Output        string // stdout/file
	FilePath      string
	MaxSize       int // 单文件最大 MB
	MaxAge        int // 保留天数
	MaxBackups    int // 保留文件数
	Compress      bool
	EnableConsole bool // 输出到文件时是否同时输出到控制台
}

// NewLogger 创建基于 zap 的 kratos log.Logger
func NewLogger(c *Config) log.Logger {
	if c == nil {
		c = &Config{Level: "info", Format: "json", Output: "stdout"}
	}

	level := zapcore.InfoLevel
	if err := level.Set(c.Level); err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "" // 时间戳由 kratos log.With 统一附加
	var enc zapcore.Encoder
	if c.Format == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	var syncers []zapcore.WriteSyncer
	if c.Output == "file" && c.FilePath != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSize,
			MaxAge:     c.MaxAge,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		}))
		if c.EnableConsole {
			syncers = append(syncers, zapcore.AddSync(os.Stdout))
		}
	} else {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(syncers...), level)
	return &zapLogger{zap: zap.New(core)}
}

// zapLogger 适配 kratos log.Logger 接口
type zapLogger struct {
	zap *zap.Logger
}

// Log 实现 log.Logger
func (l *zapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 || len(keyvals)%2 != 0 {
		l.zap.Warn("keyvalues must appear in pairs", zap.Any("keyvals", keyvals))
		return nil
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		if key == log.DefaultMessageKey {
			msg, _ = keyvals[i+1].(string)
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.zap.Debug(msg, fields...)
	case log.LevelInfo:
		l.zap.Info(msg, fields...)
	case log.LevelWarn:
		l.zap.Warn(msg, fields...)
	case log.LevelError:
		l.zap.Error(msg, fields...)
	case log.LevelFatal:
		l.zap.Fatal(msg, fields...)
	default:
		l.zap.Info(msg, fields...)
	}
	return nil
}

// Sync 刷新缓冲
func (l *zapLogger) Sync() error {
	return l.zap.Sync()
}
