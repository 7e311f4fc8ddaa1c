package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/streamspace-dev/notify-push/internal/logger"
)

func init() {
	logger.Initialize("error", false)
}

type fakeReconnectRecorder struct {
	mu    sync.Mutex
	count int
}

func (f *fakeReconnectRecorder) RecordBusReconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
}

func (f *fakeReconnectRecorder) get() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func TestSubscriber_RunReturnsPromptlyOnCancel(t *testing.T) {
	s := NewSubscriber("nats://127.0.0.1:1", "notify_push.test", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context, []byte) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestSubscriber_RunRecordsReconnectOnConnectFailure(t *testing.T) {
	recorder := &fakeReconnectRecorder{}
	s := NewSubscriber("nats://127.0.0.1:1", "notify_push.test", recorder)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context, []byte) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	assert.GreaterOrEqual(t, recorder.get(), 1)
}

func TestNewSubscriber_StoresConfiguration(t *testing.T) {
	s := NewSubscriber("nats://localhost:4222", "notify_push", nil)
	assert.Equal(t, "nats://localhost:4222", s.url)
	assert.Equal(t, "notify_push", s.subject)
}
