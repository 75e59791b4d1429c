package log

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// SlowRequestThresholdMs marks a request as slow in RequestWithContext.
const SlowRequestThresholdMs = 1000

// LogHelper extends log.Helper with typed helpers. Each helper tags the entry with a
// "type" field that EmojiConsoleEncoder maps to a prefix.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper creates a LogHelper.
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

func typed(logType, msg string, kvs []interface{}) []interface{} {
	allKvs := make([]interface{}, 0, len(kvs)+4)
	allKvs = append(allKvs, "msg", msg)
	allKvs = append(allKvs, kvs...)
	return append(allKvs, "type", logType)
}

// Request logs a completed HTTP request.
func (h *LogHelper) Request(method, url string, status int, durationMs int64, kvs ...interface{}) {
	msg := fmt.Sprintf("%s %s - %d (%dms)", method, url, status, durationMs)
	kvs = append(kvs,
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	)
	h.Infow(typed("request", msg, kvs)...)
}

// RequestWithContext logs a completed HTTP request with the request id from ctx
// and emits a slow-request warning past SlowRequestThresholdMs.
func (h *LogHelper) RequestWithContext(ctx context.Context, method, url string, status int, durationMs int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("%s %s - %d (%dms) | RequestID: %s", method, url, status, durationMs, reqCtx.RequestID)
	kvs = append(kvs,
		"request_id", reqCtx.RequestID,
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	)
	if reqCtx.Username != "" {
		kvs = append(kvs, "username", reqCtx.Username)
	}
	h.Infow(typed("request", msg, kvs)...)

	if durationMs > SlowRequestThresholdMs {
		h.Warnw(typed("warning",
			fmt.Sprintf("[%s] Slow request detected | %s %s | %dms (threshold: %dms)",
				reqCtx.RequestID, method, url, durationMs, SlowRequestThresholdMs),
			[]interface{}{"request_id", reqCtx.RequestID, "duration_ms", durationMs},
		)...)
	}
}

// RateLimit logs a rate limiter event at warn level.
func (h *LogHelper) RateLimit(msg string, kvs ...interface{}) {
	h.Warnw(typed("rate_limit", msg, kvs)...)
}

// Circuit logs a circuit breaker event. Opening transitions are warnings.
func (h *LogHelper) Circuit(opened bool, msg string, kvs ...interface{}) {
	if opened {
		h.Warnw(typed("circuit", msg, kvs)...)
		return
	}
	h.Infow(typed("circuit", msg, kvs)...)
}

// Discogs logs an upstream Discogs call at debug level.
func (h *LogHelper) Discogs(msg string, kvs ...interface{}) {
	h.Debugw(typed("discogs", msg, kvs)...)
}

// Cache logs a cache event at debug level.
func (h *LogHelper) Cache(msg string, kvs ...interface{}) {
	h.Debugw(typed("cache", msg, kvs)...)
}

// Database logs a database event at debug level.
func (h *LogHelper) Database(msg string, kvs ...interface{}) {
	h.Debugw(typed("database", msg, kvs)...)
}

// Scheduler logs a cron job event.
func (h *LogHelper) Scheduler(msg string, kvs ...interface{}) {
	h.Infow(typed("scheduler", msg, kvs)...)
}

// Startup logs a startup event.
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	h.Infow(typed("startup", msg, kvs)...)
}

// Success logs a successful operation.
func (h *LogHelper) Success(msg string, kvs ...interface{}) {
	h.Infow(typed("success", msg, kvs)...)
}
