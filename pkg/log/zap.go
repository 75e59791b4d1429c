package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"CrateScout/internal/conf"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName is attached to every log line.
const ServiceName = "CrateScout"

const (
	envDevelopment = "development"
	envProduction  = "production"
)

// customTimeEncoder formats timestamps in UTC as [2006-01-02 15:04:05]
func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("[2006-01-02 15:04:05]"))
}

// resolveEnv falls back to CRATESCOUT_ENV, then production
func resolveEnv(cfg *conf.Log) string {
	if cfg.Env != "" {
		return strings.ToLower(cfg.Env)
	}
	if env := os.Getenv("CRATESCOUT_ENV"); env != "" {
		return strings.ToLower(env)
	}
	return envProduction
}

func newEncoder(cfg *conf.Log, env string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if strings.EqualFold(cfg.Format, "console") || env == envDevelopment {
		return NewEmojiConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// NewZapLogger builds the service logger.
//
// Entries below error go to stdout and error and above to stderr. When OutputFile is
// set every enabled entry is also written to a lumberjack-rotated file. Production
// stdout is sampled so a rejection storm from the rate limiter cannot flood the log.
func NewZapLogger(cfg *conf.Log) (*zap.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config is nil")
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	env := resolveEnv(cfg)
	encoder := newEncoder(cfg, env)

	var stdout zapcore.Core = zapcore.NewCore(encoder, zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= level && lvl < zapcore.ErrorLevel
		}))
	if env != envDevelopment {
		stdout = zapcore.NewSamplerWithOptions(stdout, time.Second, 100, 10)
	}

	cores := []zapcore.Core{
		stdout,
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.ErrorLevel),
	}

	if cfg.OutputFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", ServiceName), zap.String("env", env)),
	), nil
}
