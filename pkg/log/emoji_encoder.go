package log

import (
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// emojiMap maps the "type" field written by LogHelper to a console prefix.
var emojiMap = map[string]string{
	"request":    "🌐",
	"success":    "✅",
	"error":      "❌",
	"warning":    "⚠️",
	"database":   "💾",
	"redis":      "📦",
	"cache":      "🧹",
	"rate_limit": "🚦",
	"circuit":    "🔌",
	"discogs":    "💿",
	"scheduler":  "🎯",
	"startup":    "🚀",
}

var levelEmoji = map[zapcore.Level]string{
	zapcore.DebugLevel:  "🐛",
	zapcore.InfoLevel:   "ℹ️",
	zapcore.WarnLevel:   "⚠️",
	zapcore.ErrorLevel:  "❌",
	zapcore.DPanicLevel: "❌",
	zapcore.PanicLevel:  "❌",
	zapcore.FatalLevel:  "❌",
}

func statusEmoji(status int) string {
	switch {
	case status >= 500:
		return "🔴"
	case status >= 400:
		return "🟠"
	case status >= 300:
		return "🟡"
	default:
		return "🟢"
	}
}

// prefixFor picks the emoji for an entry: an HTTP status beats a log type,
// and a log type beats the level.
func prefixFor(level zapcore.Level, fields []zapcore.Field) string {
	var logType string
	for _, f := range fields {
		switch {
		case f.Key == "status" && isIntField(f) && f.Integer > 0:
			return statusEmoji(int(f.Integer))
		case f.Key == "type" && f.Type == zapcore.StringType:
			logType = f.String
		}
	}
	if e, ok := emojiMap[logType]; ok {
		return e
	}
	return levelEmoji[level]
}

func isIntField(f zapcore.Field) bool {
	switch f.Type {
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return true
	}
	return false
}

// EmojiConsoleEncoder is zap's console encoder with an emoji in front of every message.
// It is used for console format and in development.
type EmojiConsoleEncoder struct {
	zapcore.Encoder
}

// NewEmojiConsoleEncoder creates an EmojiConsoleEncoder.
func NewEmojiConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &EmojiConsoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

// EncodeEntry implements zapcore.Encoder.
func (enc *EmojiConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if p := prefixFor(entry.Level, fields); p != "" {
		entry.Message = p + " " + entry.Message
	}
	return enc.Encoder.EncodeEntry(entry, fields)
}

// Clone implements zapcore.Encoder.
func (enc *EmojiConsoleEncoder) Clone() zapcore.Encoder {
	return &EmojiConsoleEncoder{Encoder: enc.Encoder.Clone()}
}
