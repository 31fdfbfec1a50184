package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWorkerPool_ExecutesSubmittedTasks(t *testing.T) {
	p := NewWorkerPool(2, 8, zap.NewNop())
	p.Start(context.Background())

	var done int32
	for i := 0; i < 5; i++ {
		p.Submit(func() {
			atomic.AddInt32(&done, 1)
		})
	}
	p.Stop()

	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
}

func TestWorkerPool_TrySubmitRejectsWhenFull(t *testing.T) {
	// 未启动 worker，队列容量即为接收上限
	p := NewWorkerPool(1, 2, zap.NewNop())

	assert.True(t, p.TrySubmit(func() {}))
	assert.True(t, p.TrySubmit(func() {}))
	assert.False(t, p.TrySubmit(func() {}))
}

func TestWorkerPool_RecoversFromPanickingTask(t *testing.T) {
	p := NewWorkerPool(1, 2, zap.NewNop())
	p.Start(context.Background())

	done := make(chan struct{})
	p.Submit(func() { panic("boom") })
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panic 后 worker 未继续消费任务")
	}
	p.Stop()
}
