package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_TakeDrainsInOrder(t *testing.T) {
	q := newTaskQueue()

	var got []string
	for _, name := range []string{"add", "edit", "run"} {
		require.True(t, q.push(func() { got = append(got, name) }))
	}
	assert.Equal(t, 3, q.size())

	batch, closed := q.take()
	assert.False(t, closed)
	for _, task := range batch {
		task()
	}
	assert.Equal(t, []string{"add", "edit", "run"}, got)

	batch, _ = q.take()
	assert.Empty(t, batch, "a second take finds nothing")
	assert.Zero(t, q.size())
}

func TestTaskQueue_WakeCoalesces(t *testing.T) {
	q := newTaskQueue()
	q.push(func() {})
	q.push(func() {})

	<-q.wake()
	select {
	case <-q.wake():
		t.Fatal("two pushes before a wait must produce one wakeup")
	default:
	}
}

func TestTaskQueue_Close(t *testing.T) {
	q := newTaskQueue()
	require.True(t, q.push(func() {}))
	q.close()
	q.close()

	assert.False(t, q.push(func() {}), "closed queue rejects work")

	batch, closed := q.take()
	assert.True(t, closed)
	assert.Len(t, batch, 1, "work queued before close is kept")

	select {
	case <-q.wake():
	default:
		t.Fatal("wake must fire after close")
	}
}

func TestTaskQueue_ConcurrentPush(t *testing.T) {
	q := newTaskQueue()
	const producers, perProducer = 20, 50

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.push(func() {})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.size())
}
