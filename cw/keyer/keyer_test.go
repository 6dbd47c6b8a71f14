package keyer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n5cw/gocw/cw/clock"
)

// fakeSender is a Sender/StraightKeySender with fixed, test-friendly
// element durations and a recorded call log, so the keyer's state
// machine can be exercised without the generator or a real tone queue.
type fakeSender struct {
	mu    sync.Mutex
	calls []string

	dotUs, dashUs, interMarkUs int32

	foreverOn bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{dotUs: 1000, dashUs: 3000, interMarkUs: 1000}
}

func (f *fakeSender) PlayDot() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ".")
	return nil
}

func (f *fakeSender) PlayDash() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "-")
	return nil
}

func (f *fakeSender) DotDurationUs() int32      { return f.dotUs }
func (f *fakeSender) DashDurationUs() int32     { return f.dashUs }
func (f *fakeSender) InterMarkDurationUs() int32 { return f.interMarkUs }

func (f *fakeSender) PlayForever() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreverOn = true
	f.calls = append(f.calls, "forever-on")
	return nil
}

func (f *fakeSender) StopForever() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foreverOn = false
	f.calls = append(f.calls, "forever-off")
	return nil
}

func (f *fakeSender) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// pollUntilIdle drives Poll forward in small steps until the keyer
// reaches Idle or the deadline passes, simulating the client-owned
// timer spec §4.7 calls for.
func pollUntilIdle(t *testing.T, k *Keyer, start time.Time, maxSteps int) time.Time {
	t.Helper()
	now := start
	for i := 0; i < maxSteps && k.State() != KeyerIdle; i++ {
		now = now.Add(200 * time.Microsecond)
		k.Poll(now)
	}
	require.Equal(t, KeyerIdle, k.State())
	return now
}

func TestSingleDotPaddlePressStartsAndCompletes(t *testing.T) {
	sender := newFakeSender()
	k := New(sender)

	now := time.Now()
	k.NotifyPaddleEvent(true, false)
	assert.Equal(t, InDotA, k.State())

	k.NotifyPaddleEvent(false, false) // release before it completes
	pollUntilIdle(t, k, now, 50)

	assert.Equal(t, []string{"."}, sender.snapshot())
}

func TestSingleDashPaddlePressStartsAndCompletes(t *testing.T) {
	sender := newFakeSender()
	k := New(sender)

	now := time.Now()
	k.NotifyPaddleEvent(false, true)
	assert.Equal(t, InDashA, k.State())
	k.NotifyPaddleEvent(false, false)

	pollUntilIdle(t, k, now, 50)
	assert.Equal(t, []string{"-"}, sender.snapshot())
}

func TestHeldDotPaddleRepeatsUntilReleased(t *testing.T) {
	sender := newFakeSender()
	k := New(sender)

	now := time.Now()
	k.NotifyPaddleEvent(true, false)

	// Let two full dot cycles elapse while the paddle stays down.
	for i := 0; i < 20; i++ {
		now = now.Add(200 * time.Microsecond)
		k.Poll(now)
	}
	k.NotifyPaddleEvent(false, false)
	pollUntilIdle(t, k, now, 50)

	calls := sender.snapshot()
	require.True(t, len(calls) >= 2)
	for _, c := range calls {
		assert.Equal(t, ".", c)
	}
}

func TestSqueezeAlternatesDotDash(t *testing.T) {
	sender := newFakeSender()
	k := New(sender)

	now := time.Now()
	k.NotifyPaddleEvent(true, true)
	require.Equal(t, InDotA, k.State())

	// Keep both paddles held through several full dot+dash cycles: with
	// neither paddle released, the alternation keeps going indefinitely.
	for i := 0; i < 60; i++ {
		now = now.Add(200 * time.Microsecond)
		k.Poll(now)
	}

	calls := sender.snapshot()
	require.True(t, len(calls) >= 4)
	assert.Equal(t, ".", calls[0])
	assert.Equal(t, "-", calls[1])
	assert.Equal(t, ".", calls[2])
	assert.Equal(t, "-", calls[3])
}

func TestCurtisBSendsOneOppositeElementAfterSqueezeRelease(t *testing.T) {
	sender := newFakeSender()
	k := New(sender, WithCurtisB(true))

	now := time.Now()
	k.NotifyPaddleEvent(true, true)
	// Release both paddles immediately, while the first (dot) element is
	// still sounding.
	now = now.Add(200 * time.Microsecond)
	k.Poll(now)
	k.NotifyPaddleEvent(false, false)

	pollUntilIdle(t, k, now, 50)

	calls := sender.snapshot()
	require.Equal(t, []string{".", "-"}, calls)
}

func TestCurtisADropsOppositeElementAfterSqueezeRelease(t *testing.T) {
	sender := newFakeSender()
	k := New(sender) // Curtis B disabled by default

	now := time.Now()
	k.NotifyPaddleEvent(true, true)
	now = now.Add(200 * time.Microsecond)
	k.Poll(now)
	k.NotifyPaddleEvent(false, false)

	pollUntilIdle(t, k, now, 50)

	calls := sender.snapshot()
	require.Equal(t, []string{"."}, calls)
}

func TestWaitForKeyerReturnsAfterIdle(t *testing.T) {
	sender := newFakeSender()
	k := New(sender)

	now := time.Now()
	k.NotifyPaddleEvent(true, false)

	done := make(chan struct{})
	go func() {
		_ = k.WaitForKeyer()
		close(done)
	}()

	for i := 0; i < 10; i++ {
		now = now.Add(200 * time.Microsecond)
		k.Poll(now)
	}
	k.NotifyPaddleEvent(false, false)
	for k.State() != KeyerIdle {
		now = now.Add(200 * time.Microsecond)
		k.Poll(now)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForKeyer did not return after the keyer went idle")
	}
}

func TestStraightKeyStartsAndStopsForeverTone(t *testing.T) {
	sender := newFakeSender()
	sk := NewStraightKey(sender)

	require.NoError(t, sk.NotifyEvent(true))
	assert.True(t, sk.Closed())
	assert.True(t, sender.foreverOn)

	require.NoError(t, sk.NotifyEvent(true)) // repeat, no-op
	assert.Equal(t, []string{"forever-on"}, sender.snapshot())

	require.NoError(t, sk.NotifyEvent(false))
	assert.False(t, sk.Closed())
	assert.Equal(t, []string{"forever-on", "forever-off"}, sender.snapshot())
}

// fakeNotifiable is a Notifiable that just records which edge it saw.
type fakeNotifiable struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifiable) MarkBegin(ts *clock.Timeval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "begin")
	return nil
}

func (f *fakeNotifiable) MarkEnd(ts *clock.Timeval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "end")
	return nil
}

func (f *fakeNotifiable) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestKeyerNotifiesReceiverOnEachElement(t *testing.T) {
	sender := newFakeSender()
	notif := &fakeNotifiable{}
	k := New(sender, WithNotifiable(notif))

	now := time.Now()
	k.NotifyPaddleEvent(true, false)
	k.NotifyPaddleEvent(false, false)
	pollUntilIdle(t, k, now, 50)

	assert.Equal(t, []string{"begin", "end"}, notif.snapshot())
}

func TestStraightKeyNotifiesReceiverOnEdges(t *testing.T) {
	sender := newFakeSender()
	notif := &fakeNotifiable{}
	sk := NewStraightKey(sender, WithStraightKeyNotifiable(notif))

	require.NoError(t, sk.NotifyEvent(true))
	require.NoError(t, sk.NotifyEvent(false))

	assert.Equal(t, []string{"begin", "end"}, notif.snapshot())
}

func TestStraightKeyCallbackFiresOnEdges(t *testing.T) {
	sender := newFakeSender()
	var mu sync.Mutex
	var values []int
	sk := NewStraightKey(sender, WithStraightKeyCallback(func(v int) {
		mu.Lock()
		values = append(values, v)
		mu.Unlock()
	}))

	require.NoError(t, sk.NotifyEvent(true))
	require.NoError(t, sk.NotifyEvent(false))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 0}, values)
}
