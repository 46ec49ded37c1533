package audit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_EnqueueDequeue(t *testing.T) {
	buf := NewRingBuffer(4)

	for i := 0; i < 3; i++ {
		buf.Enqueue(Event{Action: fmt.Sprintf("a%d", i)})
	}
	assert.Equal(t, 3, buf.Len())

	batch := buf.DequeueBatch(2)
	require.Len(t, batch, 2)
	assert.Equal(t, "a0", batch[0].Action)
	assert.Equal(t, "a1", batch[1].Action)
	assert.Equal(t, 1, buf.Len())
}

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	buf := NewRingBuffer(2)

	buf.Enqueue(Event{Action: "old"})
	buf.Enqueue(Event{Action: "mid"})
	buf.Enqueue(Event{Action: "new"})

	assert.Equal(t, int64(1), buf.Dropped())

	batch := buf.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "mid", batch[0].Action)
	assert.Equal(t, "new", batch[1].Action)
}

func TestRingBuffer_ConcurrentEnqueue(t *testing.T) {
	buf := NewRingBuffer(1000)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				buf.Enqueue(Event{Action: "concurrent"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, buf.Len())
	assert.Equal(t, int64(0), buf.Dropped())
}
