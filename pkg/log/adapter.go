// Package log provides logging utilities for the CrateScout service.
// It wraps Zap behind the Kratos log.Logger interface and masks sensitive fields.
package log

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
)

// messageKey matches the key log.Helper uses for the message
const messageKey = "msg"

// KratosAdapter adapts Zap logger to Kratos log.Logger interface
type KratosAdapter struct {
	zapLogger *zap.Logger
}

// NewKratosAdapter creates a new Kratos adapter for Zap logger
func NewKratosAdapter(zapLogger *zap.Logger) log.Logger {
	return &KratosAdapter{
		zapLogger: zapLogger,
	}
}

// Log implements Kratos log.Logger interface.
// A "msg" pair becomes the Zap entry message; every other pair becomes a field.
func (a *KratosAdapter) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}

	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)

	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			fields = append(fields, zap.Any(fmt.Sprint(keyvals[i]), "KEYVALS UNPAIRED"))
			break
		}

		key := fmt.Sprint(keyvals[i])
		value := keyvals[i+1]

		if key == messageKey {
			msg = fmt.Sprint(value)
			continue
		}

		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, SanitizeField(key, v)))
		case error:
			fields = append(fields, zap.String(key, v.Error()))
		default:
			fields = append(fields, zap.Any(key, value))
		}
	}

	switch level {
	case log.LevelDebug:
		a.zapLogger.Debug(msg, fields...)
	case log.LevelInfo:
		a.zapLogger.Info(msg, fields...)
	case log.LevelWarn:
		a.zapLogger.Warn(msg, fields...)
	case log.LevelError:
		a.zapLogger.Error(msg, fields...)
	case log.LevelFatal:
		a.zapLogger.Fatal(msg, fields...)
	default:
		a.zapLogger.Info(msg, fields...)
	}

	return nil
}

// Sync flushes buffered log entries.
func (a *KratosAdapter) Sync() error {
	return a.zapLogger.Sync()
}
