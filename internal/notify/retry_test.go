package notify

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/tlmon/internal/logger"
	"github.com/stretchr/testify/assert"
)

type flakyGateway struct {
	failures int
	calls    int
}

func (f *flakyGateway) SendText(context.Context, string) bool {
	f.calls++
	return f.calls > f.failures
}

func (f *flakyGateway) SendFile(context.Context, string, string, string) bool {
	f.calls++
	return f.calls > f.failures
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantOK    bool
		wantCalls int
	}{
		{"first try", 0, 3, true, 1},
		{"recovers", 2, 3, true, 3},
		{"gives up", 5, 3, false, 3},
		{"single attempt", 1, 1, false, 1},
		{"zero attempts treated as one", 0, 0, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &flakyGateway{failures: tt.failures}
			gw := WithRetry(fake, tt.attempts, time.Millisecond, logger.Nop())

			assert.Equal(t, tt.wantOK, gw.SendText(context.Background(), "msg"))
			assert.Equal(t, tt.wantCalls, fake.calls)
		})
	}
}

func TestWithRetryFile(t *testing.T) {
	fake := &flakyGateway{failures: 1}
	gw := WithRetry(fake, 2, time.Millisecond, logger.Nop())

	assert.True(t, gw.SendFile(context.Background(), "a.jpg", "t", "c"))
	assert.Equal(t, 2, fake.calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &flakyGateway{failures: 10}
	gw := WithRetry(fake, 5, time.Hour, logger.Nop())

	assert.False(t, gw.SendText(ctx, "msg"))
	assert.Equal(t, 1, fake.calls)
}

func TestDiscard(t *testing.T) {
	gw := NewDiscard(logger.Nop())
	assert.True(t, gw.SendText(context.Background(), "msg"))
	assert.True(t, gw.SendFile(context.Background(), "a.jpg", "t", "c"))
}

type textOnlyGateway struct {
	flakyGateway
}

func (*textOnlyGateway) SupportsFiles() bool { return false }

func TestWithRetrySkipsUnsupportedFiles(t *testing.T) {
	fake := &textOnlyGateway{flakyGateway{failures: 10}}
	gw := WithRetry(fake, 3, time.Hour, logger.Nop())

	assert.False(t, SupportsFiles(gw))
	assert.False(t, gw.SendFile(context.Background(), "a.jpg", "t", "c"))
	assert.Equal(t, 1, fake.calls)
}
