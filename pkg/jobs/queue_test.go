package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{Type: "noop"}), ErrQueueStopped)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{Type: "noop"}), ErrQueueStopped)
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	picked := make(chan struct{}, 1)
	release := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error {
		picked <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	select {
	case <-picked:
	case <-time.After(time.Second):
		t.Fatal("job not picked up")
	}
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	assert.Equal(t, 1, q.Pending())
	assert.ErrorIs(t, q.Enqueue(Job{ID: "overflow"}), ErrQueueFull)
}

func TestQueueReportsExhaustedJobs(t *testing.T) {
	exhausted := make(chan Job, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		return errors.New("lock busy")
	}, QueueConfig{
		Workers:     1,
		MaxRetries:  1,
		RetryDelay:  time.Millisecond,
		OnExhausted: func(job Job, _ error) { exhausted <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "run-1", Type: "stats_recompute"}))
	select {
	case job := <-exhausted:
		assert.Equal(t, "run-1", job.ID)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("exhaustion not reported")
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	done := make(chan struct{}, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		ids = append(ids, job.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{}))
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 2)
	assert.Equal(t, "a", ids[0])
	assert.NotEmpty(t, ids[1])
}

func TestQueueRetriesFailures(t *testing.T) {
	var attempts int32
	done := make(chan int, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("boom")
		}
		done <- job.Attempt
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "retry"}))
	select {
	case attempt := <-done:
		assert.Equal(t, 2, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			panic("unexpected")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "panic"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried after panic")
	}
}
