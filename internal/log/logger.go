package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quantlab/internal/config"
)

const serviceName = "quantlab"

// NewLogger 根据配置创建 zap.Logger。日志默认写 stderr，stdout 留给结果表。
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, fmt.Errorf("解析日志级别失败: %w", err)
		}
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	errorOutputs := cfg.ErrorOutputPaths
	if len(errorOutputs) == 0 {
		errorOutputs = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig(encoding),
		OutputPaths:       outputs,
		ErrorOutputPaths:  errorOutputs,
		DisableStacktrace: !cfg.Development,
		InitialFields:     map[string]interface{}{"service": serviceName},
	}

	logger, err := zapCfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("创建日志实例失败: %w", err)
	}

	return logger, nil
}

func encoderConfig(encoding string) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.NameKey = "logger"
	enc.CallerKey = "caller"
	enc.FunctionKey = zapcore.OmitKey
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	if encoding == "console" {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	return enc
}
