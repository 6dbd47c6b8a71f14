// Package tonequeue implements the bounded circular buffer of pending
// tones that sits between senders (generator.PlayString and friends) and
// the generator's worker goroutine.
//
// Grounded on direwolf's src/tq.go transmit queue: one mutex guarding the
// queue's own fields, and a sync.Cond used to wake the consumer goroutine
// when the queue transitions from Idle to Busy; a producer only wakes it
// on that transition, not on every enqueue. tq.go's linked list of packets becomes a fixed
// circular array of cw.Tone here because spec §3 specifies a bounded
// capacity with a high-water mark, which tq.go's unbounded per-channel
// list does not model.
package tonequeue

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/n5cw/gocw/cw"
)

// DequeueResult is the three-valued outcome of Dequeue. The three-way
// split is essential to the generator's worker loop (see spec §4.3): a
// plain "queue is empty" boolean cannot distinguish "just went empty,
// flush a trailing silence block" from "been empty a while, go to
// sleep."
type DequeueResult int

const (
	// Idle means the queue has been empty since the last drain; the
	// worker should block on WaitForWorker until the next enqueue.
	Idle DequeueResult = iota
	// Dequeued carries a tone that was removed from (or, for a Forever
	// tone, peeked at) the head of the queue.
	Dequeued
	// EmptyButRecentlyActive means this dequeue just drained the last
	// tone; the caller should write one trailing block of silence to
	// flush the sink, then the queue will report Idle from here on.
	EmptyButRecentlyActive
)

// LowWaterCallback is invoked after length crosses from above level to at
// or below it, outside the queue's lock.
type LowWaterCallback func(arg any)

// Queue is a fixed-capacity circular buffer of cw.Tone.
type Queue struct {
	mu sync.Mutex

	buf  []cw.Tone
	head int
	tail int
	len  int
	busy bool // state == Busy per spec §3; busy == false means Idle

	lowWaterLevel    int
	lowWaterCallback LowWaterCallback
	lowWaterArg      any

	wakeCond       *sync.Cond
	idleCond       *sync.Cond
	levelCond      *sync.Cond
	recentlyActive bool
	headVersion    uint64 // bumped whenever head advances or busy->idle

	inWorkerWait bool // guards against a client deadlocking on the worker's own wake

	log *log.Logger
}

// Option configures a new Queue.
type Option func(*Queue)

// WithLogger attaches a structured logger; nil is treated as no logging.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// New creates an empty Queue with the given capacity, which must be in
// (0, cw.MaxToneQueueCapacity]. No high-water mark is taken here; see
// SetCapacity. The low-water level is set separately through
// RegisterLowWaterCallback.
func New(capacity int, opts ...Option) (*Queue, error) {
	if capacity <= 0 || capacity > cw.MaxToneQueueCapacity {
		return nil, fmt.Errorf("%w: capacity %d out of range (0,%d]", cw.ErrInvalidArgument, capacity, cw.MaxToneQueueCapacity)
	}
	q := &Queue{
		buf:           make([]cw.Tone, capacity),
		lowWaterLevel: -1,
	}
	q.wakeCond = sync.NewCond(&q.mu)
	q.idleCond = sync.NewCond(&q.mu)
	q.levelCond = sync.NewCond(&q.mu)
	for _, o := range opts {
		o(q)
	}
	return q, nil
}

func (q *Queue) logf(format string, args ...any) {
	if q.log != nil {
		q.log.Debugf(format, args...)
	}
}

// Capacity returns the fixed buffer size.
func (q *Queue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Length returns the number of tones currently queued.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len == len(q.buf)
}

// IsBusy reports whether the queue's state is Busy (non-empty, or
// recently drained and awaiting the trailing-silence flush).
func (q *Queue) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// SetCapacity resizes the queue. The queue must be empty; resizing a
// queue mid-flight would require either truncating pending tones or
// reallocating in a way that could reorder them, neither of which the
// spec countenances.
func (q *Queue) SetCapacity(capacity, highWaterMark int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if highWaterMark <= 0 || highWaterMark > capacity || capacity > cw.MaxToneQueueCapacity {
		return fmt.Errorf("%w: capacity=%d high_water_mark=%d", cw.ErrInvalidArgument, capacity, highWaterMark)
	}
	if q.len != 0 {
		return fmt.Errorf("%w: queue must be empty to resize", cw.ErrInvalidArgument)
	}
	q.buf = make([]cw.Tone, capacity)
	q.head, q.tail = 0, 0
	return nil
}

// RegisterLowWaterCallback arranges for cb(arg) to be invoked, with the
// queue's lock released, the first time a dequeue makes length transition
// from above level to at-or-below it. 0 <= level < capacity.
func (q *Queue) RegisterLowWaterCallback(cb LowWaterCallback, arg any, level int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if level < 0 || level >= len(q.buf) {
		return fmt.Errorf("%w: low water level %d out of range", cw.ErrInvalidArgument, level)
	}
	q.lowWaterCallback = cb
	q.lowWaterArg = arg
	q.lowWaterLevel = level
	return nil
}

// Enqueue appends tone to the tail of the queue. A zero-duration tone is
// silently dropped (Ok, no-op) per spec §3. Returns cw.ErrFullQueue if
// the buffer has no room, or cw.ErrInvalidArgument if the tone's
// frequency or duration is out of range.
func (q *Queue) Enqueue(tone cw.Tone) error {
	if !tone.Valid() {
		return fmt.Errorf("%w: %+v", cw.ErrInvalidArgument, tone)
	}
	if tone.DurationUs == 0 {
		return nil
	}

	q.mu.Lock()
	if q.len == len(q.buf) {
		q.mu.Unlock()
		return fmt.Errorf("%w: capacity %d", cw.ErrFullQueue, len(q.buf))
	}

	q.buf[q.tail] = tone
	q.tail = (q.tail + 1) % len(q.buf)
	q.len++
	wasIdle := !q.busy
	q.busy = true
	q.recentlyActive = true
	q.mu.Unlock()

	if wasIdle {
		q.logf("tonequeue: idle -> busy, waking worker")
		// Broadcast, not Signal: WaitForTone callers share wakeCond, and a
		// single Signal could go to one of them instead of the worker.
		q.wakeCond.Broadcast()
	}
	return nil
}

// Dequeue removes and returns the tone at the head of the queue, per the
// three-valued contract in spec §4.3. If the head tone has Forever set
// and it is the only element, the tone is returned without being
// removed; a subsequently enqueued tone replaces it as the new head.
func (q *Queue) Dequeue() (cw.Tone, DequeueResult) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.len == 0 {
		if q.recentlyActive {
			q.recentlyActive = false
			q.busy = false
			q.headVersion++
			q.idleCond.Broadcast()
			q.wakeCond.Broadcast()
			return cw.Tone{}, EmptyButRecentlyActive
		}
		return cw.Tone{}, Idle
	}

	head := q.buf[q.head]
	if head.Forever && q.len == 1 {
		return head, Dequeued
	}

	q.head = (q.head + 1) % len(q.buf)
	q.len--
	q.headVersion++

	q.maybeFireLowWaterLocked()
	if q.len == 0 {
		// Stay Busy; the caller is expected to observe
		// EmptyButRecentlyActive on the *next* call once it has
		// written the tone just returned, matching the "write one
		// more trailing silence block" contract.
		q.recentlyActive = true
	} else {
		q.levelCond.Broadcast()
	}
	q.wakeCond.Broadcast() // head advanced
	return head, Dequeued
}

// maybeFireLowWaterLocked must be called with q.mu held. It snapshots the
// callback under the lock but invokes it after releasing, per spec §4.3
// ("invoke cb(arg) once, outside the queue's lock").
func (q *Queue) maybeFireLowWaterLocked() {
	if q.lowWaterCallback == nil {
		return
	}
	if q.lowWaterLevel < 0 {
		return
	}
	// length just decremented; fire when it has crossed from above the
	// level to at-or-below it.
	if q.len == q.lowWaterLevel {
		cb, arg := q.lowWaterCallback, q.lowWaterArg
		q.mu.Unlock()
		cb(arg)
		q.mu.Lock()
	}
}

// Flush atomically empties the queue. The worker will observe
// EmptyButRecentlyActive on its next Dequeue and write a final silence
// block before idling.
func (q *Queue) Flush() {
	q.mu.Lock()
	q.head, q.tail, q.len = 0, 0, 0
	wasBusy := q.busy
	q.recentlyActive = wasBusy
	q.headVersion++
	q.mu.Unlock()
	q.idleCond.Broadcast()
	q.levelCond.Broadcast()
}

// Reset zeroes the queue and clears the low-water callback.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.head, q.tail, q.len = 0, 0, 0
	q.busy = false
	q.recentlyActive = false
	q.lowWaterCallback = nil
	q.lowWaterArg = nil
	q.lowWaterLevel = -1
	q.headVersion++
	q.mu.Unlock()
	q.idleCond.Broadcast()
	q.levelCond.Broadcast()
	q.wakeCond.Broadcast()
}

// markWorkerWaiting/markWorkerDone bracket the one goroutine allowed to
// call WaitForTone/WaitForToneQueue as the generator's own worker. Any
// *other* caller (e.g. a client thread polling from inside a keying
// callback invoked by the worker itself) attempting to wait would
// deadlock exactly the way the original's signal-based wake would if the
// wake signal were blocked — reported as ErrWakeSignalBlocked rather than
// hanging forever.
func (q *Queue) markWorkerWaiting() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inWorkerWait {
		return cw.ErrWakeSignalBlocked
	}
	q.inWorkerWait = true
	return nil
}

func (q *Queue) markWorkerDone() {
	q.mu.Lock()
	q.inWorkerWait = false
	q.mu.Unlock()
}

// WaitForTone blocks until the head advances (a tone was dequeued) or the
// queue becomes Idle, whichever happens first.
func (q *Queue) WaitForTone() error {
	if err := q.markWorkerWaiting(); err != nil {
		return err
	}
	defer q.markWorkerDone()

	q.mu.Lock()
	defer q.mu.Unlock()
	start := q.headVersion
	for q.headVersion == start {
		q.wakeCond.Wait()
	}
	return nil
}

// WaitForToneQueue blocks until the queue's state becomes Idle.
func (q *Queue) WaitForToneQueue() error {
	if err := q.markWorkerWaiting(); err != nil {
		return err
	}
	defer q.markWorkerDone()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.busy {
		q.idleCond.Wait()
	}
	return nil
}

// WaitForLevel blocks until length <= level.
func (q *Queue) WaitForLevel(level int) error {
	if err := q.markWorkerWaiting(); err != nil {
		return err
	}
	defer q.markWorkerDone()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.len > level {
		q.levelCond.Wait()
	}
	return nil
}

// WaitForWorker blocks the generator's worker goroutine until woken by an
// Enqueue transitioning the queue from Idle to Busy, or until stopCh is
// closed. Unlike WaitForTone*, this is meant to be called exactly from
// the worker's own idle-sleep branch and does not participate in the
// re-entrancy guard above (it IS the wake consumer, not a client
// observer of it).
//
// stopCh is watched by a short-lived helper goroutine that Broadcasts
// wakeCond when it closes, since sync.Cond.Wait cannot itself select on
// a channel; the helper exits via done as soon as WaitForWorker returns
// by any path, so a generator Stop()ped while idle never leaves a
// goroutine parked on this cond forever.
func (q *Queue) WaitForWorker(stopCh <-chan struct{}) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stopCh:
			q.mu.Lock()
			q.wakeCond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.busy {
		select {
		case <-stopCh:
			return
		default:
		}
		q.wakeCond.Wait()
	}
}
