package tonequeue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/n5cw/gocw/cw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func tone(freq, dur int32) cw.Tone {
	return cw.Tone{FrequencyHz: freq, DurationUs: dur, SlopeMode: cw.NoSlopes}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(tone(800, 100)))
	require.NoError(t, q.Enqueue(tone(0, 200)))

	assert.Equal(t, 2, q.Length())

	got, res := q.Dequeue()
	require.Equal(t, Dequeued, res)
	assert.Equal(t, int32(800), got.FrequencyHz)

	got, res = q.Dequeue()
	require.Equal(t, Dequeued, res)
	assert.Equal(t, int32(200), got.DurationUs)

	_, res = q.Dequeue()
	assert.Equal(t, EmptyButRecentlyActive, res)

	_, res = q.Dequeue()
	assert.Equal(t, Idle, res)
}

func TestZeroDurationToneDropped(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(tone(800, 0)))
	assert.Equal(t, 0, q.Length())
}

func TestInvalidFrequencyRejected(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)
	err = q.Enqueue(tone(5000, 100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cw.ErrInvalidArgument))
}

func TestFullQueueRejectsEnqueue(t *testing.T) {
	q, err := New(3)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(tone(800, 100)))
	}
	assert.True(t, q.IsFull())

	err = q.Enqueue(tone(800, 100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, cw.ErrFullQueue))
	assert.Equal(t, 3, q.Length())
}

func TestNEnqueuesLengthInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 50).Draw(t, "capacity")
		n := rapid.IntRange(0, capacity).Draw(t, "n")

		q, err := New(capacity)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			require.NoError(t, q.Enqueue(tone(800, 100)))
		}
		assert.Equal(t, n, q.Length())
		assert.Equal(t, n == capacity, q.IsFull())
	})
}

func TestForeverToneHeldUntilReplaced(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)

	forever := cw.Tone{FrequencyHz: 800, DurationUs: 100, SlopeMode: cw.NoSlopes, Forever: true}
	require.NoError(t, q.Enqueue(forever))

	got, res := q.Dequeue()
	require.Equal(t, Dequeued, res)
	assert.True(t, got.Forever)
	assert.Equal(t, 1, q.Length()) // not consumed

	got, res = q.Dequeue()
	require.Equal(t, Dequeued, res)
	assert.True(t, got.Forever)

	// A new tone replaces it as head.
	require.NoError(t, q.Enqueue(tone(0, 50)))
	assert.Equal(t, 2, q.Length())
	got, res = q.Dequeue()
	require.Equal(t, Dequeued, res)
	assert.True(t, got.Forever) // forever still head until it's actually displaced by FIFO order

	got, res = q.Dequeue()
	require.Equal(t, Dequeued, res)
	assert.Equal(t, int32(0), got.FrequencyHz)
}

func TestLowWaterCallbackFiresOnce(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	require.NoError(t, q.RegisterLowWaterCallback(func(arg any) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil, 3))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(tone(800, 100)))
	}

	// Drain down to length 4, 3, 2, 1, 0 - callback should fire exactly
	// once, at the transition 4 -> 3.
	for i := 0; i < 5; i++ {
		q.Dequeue()
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestLowWaterCallbackInvokedOutsideLock(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)
	require.NoError(t, q.RegisterLowWaterCallback(func(arg any) {
		// If the lock were still held, this would deadlock.
		_ = q.Length()
	}, nil, 0))

	require.NoError(t, q.Enqueue(tone(800, 100)))
	q.Dequeue()
}

func TestFlushThenWorkerObservesRecentlyActive(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(tone(800, 100)))
	require.NoError(t, q.Enqueue(tone(800, 100)))

	q.Flush()
	assert.Equal(t, 0, q.Length())

	_, res := q.Dequeue()
	assert.Equal(t, EmptyButRecentlyActive, res)
	_, res = q.Dequeue()
	assert.Equal(t, Idle, res)
}

func TestWaitForWorkerWakesOnEnqueue(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)

	stopCh := make(chan struct{})
	woke := make(chan struct{})
	go func() {
		q.WaitForWorker(stopCh)
		close(woke)
	}()

	time.Sleep(5 * time.Millisecond) // let the goroutine reach WaitForWorker
	require.NoError(t, q.Enqueue(tone(800, 100)))

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("worker never woke")
	}
}

func TestWaitForWorkerReturnsWhenStopChCloses(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)

	stopCh := make(chan struct{})
	woke := make(chan struct{})
	go func() {
		q.WaitForWorker(stopCh)
		close(woke)
	}()

	time.Sleep(5 * time.Millisecond) // let the goroutine reach WaitForWorker
	close(stopCh)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("worker never returned after stopCh closed")
	}
}

func TestSetCapacityRequiresEmpty(t *testing.T) {
	q, err := New(10)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(tone(800, 100)))

	err = q.SetCapacity(20, 15)
	require.Error(t, err)

	q.Dequeue()
	q.Dequeue() // drain to Idle

	require.NoError(t, q.SetCapacity(20, 15))
	assert.Equal(t, 20, q.Capacity())
}
