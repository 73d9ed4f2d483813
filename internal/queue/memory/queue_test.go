package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotescrape/internal/quotes"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan quotes.DetailJob, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	job := quotes.DetailJob{Sequence: 7, Stub: quotes.Stub{Author: "A"}}
	require.NoError(t, q.Enqueue(context.Background(), job))

	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		assert.Equal(t, 7, got.Sequence)
		assert.Equal(t, "A", got.Stub.Author)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qDequeue.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	qEnqueue := NewQueue(1)
	require.NoError(t, qEnqueue.Enqueue(context.Background(), quotes.DetailJob{Sequence: 1}))
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	err = qEnqueue.Enqueue(ctx, quotes.DetailJob{Sequence: 2})
	require.EqualError(t, err, "enqueue canceled: context canceled")
}

func TestQueueCloseDrainsBufferedJobs(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), quotes.DetailJob{Sequence: 1}))
	require.NoError(t, q.Enqueue(context.Background(), quotes.DetailJob{Sequence: 2}))
	assert.Equal(t, 2, q.Len())
	q.Close()

	for _, want := range []int{1, 2} {
		job, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, job.Sequence)
	}
	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, quotes.ErrQueueClosed)

	require.ErrorIs(t, q.Enqueue(context.Background(), quotes.DetailJob{Sequence: 3}), quotes.ErrQueueClosed)
	// Closing twice should be safe.
	q.Close()
}
