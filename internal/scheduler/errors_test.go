package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tanq16/dlq/internal/transport"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", &transport.Error{Kind: transport.KindTimeout}, true},
		{"connect", &transport.Error{Kind: transport.KindConnect}, true},
		{"request", &transport.Error{Kind: transport.KindRequest}, true},
		{"body", &transport.Error{Kind: transport.KindBody}, true},
		{"other transport", &transport.Error{Kind: transport.KindOther}, true},
		{"server error", transport.StatusError("x", 502), true},
		{"client error", transport.StatusError("x", 404), false},
		{"redirect status", transport.StatusError("x", 304), false},
		{"unsupported", &transport.Error{Kind: transport.KindUnsupported}, false},
		{"wrapped transport", fmt.Errorf("get: %w", transport.StatusError("x", 503)), true},
		{"filesystem", &os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}, false},
		{"cancelled", ErrCancelled, false},
		{"context cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestRetriesExhaustedError(t *testing.T) {
	last := transport.StatusError("http/get", 500)
	err := error(&RetriesExhaustedError{Attempts: 4, LastErr: last})
	assert.Equal(t, "retries exhausted after 4 attempts: http/get: server returned status 500", err.Error())
	assert.ErrorIs(t, err, last)
	assert.Contains(t, (&RetriesExhaustedError{Attempts: 1}).Error(), "unknown error")
}

func TestConfigDefaultsAndBackoff(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, DefaultMaxRetries, cfg.Request.MaxRetries)
	assert.Equal(t, DefaultProgressInterval, cfg.Request.ProgressInterval)

	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 2*time.Second, cfg.backoff(2))
	assert.Equal(t, 4*time.Second, cfg.backoff(3))
	for _, attempt := range []int{35, 64, 200} {
		assert.Equal(t, maxBackoff, cfg.backoff(attempt), attempt)
	}
	long := Config{BackoffBase: time.Hour}
	assert.Equal(t, time.Hour, long.backoff(1))
	assert.Equal(t, time.Hour, long.backoff(40))

	cfg = Config{Request: RequestConfig{MaxRetries: 0, UserAgent: "ua"}}.withDefaults()
	assert.Zero(t, cfg.Request.MaxRetries)
	assert.Equal(t, "ua", cfg.Request.UserAgent)
}
