package log

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateRequestID()
		assert.Len(t, id, 10)
		assert.Regexp(t, "^[0-9a-z]{10}$", id)
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 990)
}

func TestRequestContext_RoundTrip(t *testing.T) {
	ctx := WithRequestContext(context.Background(), "req0000001", "/api/v1/resilience")

	reqCtx := GetRequestContext(ctx)
	assert.Equal(t, "req0000001", reqCtx.RequestID)
	assert.Equal(t, "/api/v1/resilience", reqCtx.Operation)
	assert.False(t, reqCtx.StartTime.IsZero())
	assert.Equal(t, "req0000001", GetRequestID(ctx))
}

func TestRequestContext_Missing(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Equal(t, "unknown", GetRequestID(nil))
	assert.Zero(t, GetElapsedTime(context.Background()))
}

func TestSetUsername(t *testing.T) {
	ctx := WithRequestContext(context.Background(), "req0000002", "/api/v1/search/filter")
	SetUsername(ctx, "alice")
	assert.Equal(t, "alice", GetRequestContext(ctx).Username)

	assert.NotPanics(t, func() { SetUsername(context.Background(), "bob") })
}

func TestGetElapsedTime(t *testing.T) {
	ctx := WithRequestContext(context.Background(), "req0000003", "op")
	time.Sleep(15 * time.Millisecond)
	assert.GreaterOrEqual(t, GetElapsedTime(ctx), int64(10))
}
