package log

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type contextKey string

const requestContextKey contextKey = "cratescout_request_context"

// RequestContext carries per-request tracing data through a context.
type RequestContext struct {
	RequestID string    // 10-char base36 id, e.g. mgrn0zfqda
	Operation string    // transport operation, e.g. /api/v1/search/filter
	Username  string    // Discogs user the request acts for, if any
	StartTime time.Time // when the request entered the server
}

var (
	randSource  = rand.NewSource(time.Now().UnixNano())
	randMutex   sync.Mutex
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateRequestID returns a random 10-character base36 request id.
func GenerateRequestID() string {
	randMutex.Lock()
	defer randMutex.Unlock()

	b := make([]byte, 10)
	for i := range b {
		b[i] = base36Chars[randSource.Int63()%36]
	}
	return string(b)
}

// WithRequestContext stores a new RequestContext in ctx.
func WithRequestContext(ctx context.Context, requestID, operation string) context.Context {
	reqCtx := &RequestContext{
		RequestID: requestID,
		Operation: operation,
		StartTime: time.Now(),
	}
	return context.WithValue(ctx, requestContextKey, reqCtx)
}

// GetRequestContext returns the RequestContext stored in ctx, or an "unknown" placeholder.
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx != nil {
		if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{RequestID: "unknown"}
}

// GetRequestID returns the request id stored in ctx.
func GetRequestID(ctx context.Context) string {
	return GetRequestContext(ctx).RequestID
}

// SetUsername records the Discogs username on the request context, if one is present.
func SetUsername(ctx context.Context, username string) {
	if ctx == nil {
		return
	}
	if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
		reqCtx.Username = username
	}
}

// GetElapsedTime returns milliseconds since the request started.
func GetElapsedTime(ctx context.Context) int64 {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.StartTime.IsZero() {
		return 0
	}
	return time.Since(reqCtx.StartTime).Milliseconds()
}
