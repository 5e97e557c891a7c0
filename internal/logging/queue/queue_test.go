package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
)

func drain(t *testing.T, q *Queue) []string {
	t.Helper()
	var out []string
	for !q.IsEmpty() {
		line, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		out = append(out, line)
	}
	return out
}

func TestQueue_FIFO(t *testing.T) {
	q := New(10, logging.PolicyBlock)

	for i := 0; i < 10; i++ {
		_, err := q.Enqueue(context.Background(), fmt.Sprintf("line %d", i))
		require.NoError(t, err)
	}

	lines := drain(t, q)
	require.Len(t, lines, 10)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("line %d", i), line)
	}
	assert.True(t, q.IsEmpty())
}

func TestQueue_Defaults(t *testing.T) {
	q := New(0, "")
	assert.Equal(t, logging.DefaultQueueSize, q.Cap())
	assert.Equal(t, logging.PolicyBlock, q.policy)
}

func TestQueue_BlockPolicyStallsProducer(t *testing.T) {
	q := New(2, logging.PolicyBlock)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, "a")
	_, _ = q.Enqueue(ctx, "b")

	done := make(chan struct{})
	go func() {
		_, err := q.Enqueue(ctx, "c")
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("producer was not blocked on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	line, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", line)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer not released after a slot freed")
	}

	assert.Equal(t, []string{"b", "c"}, drain(t, q))
}

func TestQueue_BlockPolicyHonoursContext(t *testing.T) {
	q := New(1, logging.PolicyBlock)
	_, _ = q.Enqueue(context.Background(), "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Enqueue(ctx, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DropNewest(t *testing.T) {
	q := New(3, logging.PolicyDropNewest)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		dropped, err := q.Enqueue(ctx, fmt.Sprintf("%d", i))
		if i < 3 {
			assert.NoError(t, err)
			assert.False(t, dropped)
		} else {
			assert.ErrorIs(t, err, ErrQueueFull)
			assert.True(t, dropped)
		}
	}

	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, []string{"0", "1", "2"}, drain(t, q))
}

func TestQueue_DropOldest(t *testing.T) {
	q := New(3, logging.PolicyDropOldest)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(ctx, fmt.Sprintf("%d", i))
		assert.NoError(t, err)
	}

	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, []string{"2", "3", "4"}, drain(t, q))
}

func TestQueue_DequeueHonoursContext(t *testing.T) {
	q := New(1, logging.PolicyBlock)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := New(1000, logging.PolicyBlock)

	var wg sync.WaitGroup
	for p := 0; p < 5; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := q.Enqueue(context.Background(), fmt.Sprintf("p%d-%03d", id, i))
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	lines := drain(t, q)
	assert.Len(t, lines, 500)

	// per-producer order survives interleaving
	last := map[byte]string{}
	for _, line := range lines {
		producer := line[1]
		assert.Greater(t, line, last[producer])
		last[producer] = line
	}
}

func TestQueue_PendingTracksConsumer(t *testing.T) {
	q := New(2, logging.PolicyDropOldest)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, "a")
	_, _ = q.Enqueue(ctx, "b")
	_, _ = q.Enqueue(ctx, "c")
	assert.Equal(t, int64(2), q.Pending())

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.Pending(), "dequeued line counts until Done")

	q.Done()
	assert.Equal(t, int64(1), q.Pending())

	rejecting := New(1, logging.PolicyDropNewest)
	_, _ = rejecting.Enqueue(ctx, "x")
	_, err = rejecting.Enqueue(ctx, "y")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), rejecting.Pending())
}
