package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "audit"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for job")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&processed))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{}))
	assert.Error(t, q.TryEnqueue(Job{}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue(Job{}))
}

func TestQueueTryEnqueueReportsFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1, DrainTimeout: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	// Wait for the worker to pick up the first job so the buffer is empty again.
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "overflow"}), ErrQueueFull)
}

func TestQueueRefusesJobsOnceParentCancelled(t *testing.T) {
	var handled int32
	q := NewQueue("cancelled", func(context.Context, Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{DrainTimeout: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()

	assert.Error(t, q.TryEnqueue(Job{ID: "late"}))
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
	q.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&handled))
	assert.Equal(t, int64(0), q.outstanding.Load())
}

func TestQueueStopWaitsForPendingRetry(t *testing.T) {
	var attempts, succeeded int32
	q := NewQueue("drain", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		atomic.AddInt32(&succeeded, 1)
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: 20 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "audit-1"}))
	q.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&succeeded))
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}
