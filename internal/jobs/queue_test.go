package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQueue_FIFO(t *testing.T) {
	q := newRunQueue()
	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(id))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRunQueue_Dedup(t *testing.T) {
	q := newRunQueue()

	assert.True(t, q.Enqueue("r1"))
	assert.False(t, q.Enqueue("r1"), "queued id is not queued twice")
	assert.Equal(t, 1, q.Len())

	id, ok := q.TryDequeue()
	require.True(t, ok)
	assert.False(t, q.Enqueue(id), "in-flight id is not queued again")

	q.Done(id)
	assert.True(t, q.Enqueue(id), "released id can be queued again")
}

func TestRunQueue_WaitSignals(t *testing.T) {
	q := newRunQueue()
	done := make(chan string)

	go func() {
		<-q.Wait()
		id, _ := q.TryDequeue()
		done <- id
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue("r1")

	select {
	case id := <-done:
		assert.Equal(t, "r1", id)
	case <-time.After(time.Second):
		t.Fatal("waiter was not signalled")
	}
}

func TestRunQueue_Close(t *testing.T) {
	q := newRunQueue()
	q.Enqueue("r1")
	q.Enqueue("r2")
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue("r3"), "enqueue after close should fail")
	assert.False(t, q.Drained(), "queued ids survive close")

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue should wake waiters")
	}

	id, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "r1", id)
	_, ok = q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())
}

func TestRunQueue_ThreadSafe(t *testing.T) {
	q := newRunQueue()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(fmt.Sprintf("r-%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for {
		id, ok := q.TryDequeue()
		if !ok {
			break
		}
		require.False(t, seen[id], "id %s dequeued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, producers*perProducer)
}
