// Package keyer implements the cooperatively-scheduled iambic paddle
// keyer and the straight key, per spec §4.7/§4.8.
//
// direwolf drives its transmitter's PTT line from several backends
// (ptt.go: serial RTS/DTR, sysfs GPIO, libgpiod, CM108 USB audio,
// Hamlib), selected at config time and invoked through one ptt_set(ot,
// channel, value) call regardless of backend; this package keeps that
// same "one call, many backends" shape for the opposite direction — a
// key/paddle INPUT driving the generator's tone queue — with hardware
// backends split into cw/keyer/gpiohw and cw/keyer/serialhw so the core
// state machine stays free of any particular transport.
package keyer

import (
	"sync"
	"time"

	"github.com/n5cw/gocw/cw/clock"
)

// Sender is the generator capability the keyer needs: enqueueing marks
// and reading the current element timing. Satisfied by
// *generator.Generator; the keyer package never imports the generator
// package to avoid the cycle spec §3 calls out (key -> generator,
// generator has no reason to know about keys).
type Sender interface {
	PlayDot() error
	PlayDash() error
	DotDurationUs() int32
	DashDurationUs() int32
	InterMarkDurationUs() int32
}

// Notifiable is the receiver capability a key notifies of its keying
// edges: key-down/key-up timestamps for the decoder to classify into
// marks, per spec §3's "A Key holds non-owning references to a
// Generator... and a Receiver, to notify of keying events." Satisfied
// by *receiver.Receiver; the keyer package imports only cw/clock for
// the Timeval argument type, never cw/receiver itself.
type Notifiable interface {
	MarkBegin(ts *clock.Timeval) error
	MarkEnd(ts *clock.Timeval) error
}

// KeyingCallback is invoked whenever the physical key state this source
// represents changes, value 1 for key-down and 0 for key-up.
type KeyingCallback func(value int)

// State is the iambic keyer's state machine position, per spec §3/§4.7.
// The A states are the ordinary alternation while at least one paddle
// or latch is active; the B states are the single extra element Curtis
// mode B sends after a squeeze, once both paddles have released.
type State int

const (
	KeyerIdle State = iota
	InDotA
	InDashA
	AfterDotA
	AfterDashA
	InDotB
	InDashB
	AfterDotB
	AfterDashB
)

func (s State) String() string {
	switch s {
	case KeyerIdle:
		return "Idle"
	case InDotA:
		return "InDotA"
	case InDashA:
		return "InDashA"
	case AfterDotA:
		return "AfterDotA"
	case AfterDashA:
		return "AfterDashA"
	case InDotB:
		return "InDotB"
	case InDashB:
		return "InDashB"
	case AfterDotB:
		return "AfterDotB"
	case AfterDashB:
		return "AfterDashB"
	default:
		return "State(?)"
	}
}

// Keyer is a Curtis-mode iambic paddle keyer, per spec §4.7: "A
// cooperatively-scheduled state machine driven by a timer owned by the
// client." The client calls Poll(now) on every timer tick; the keyer
// itself never starts a goroutine or sleeps.
type Keyer struct {
	mu   sync.Mutex
	cond *sync.Cond

	sender     Sender
	notifiable Notifiable

	state State

	dotPaddle, dashPaddle bool
	dotLatch, dashLatch   bool

	curtisBEnabled bool
	curtisBLatch   bool

	elementEndsAt time.Time

	keyingCallback KeyingCallback

	generation int   // bumped on every state change, for Wait* callers
	lastErr    error // last error returned by the sender's PlayDot/PlayDash
}

// Option configures a new Keyer.
type Option func(*Keyer)

// WithCurtisB enables Curtis mode B (the opposite-element completion
// rule when both paddles are pressed together).
func WithCurtisB(enabled bool) Option {
	return func(k *Keyer) { k.curtisBEnabled = enabled }
}

// WithKeyerKeyingCallback registers the PTT-edge callback.
func WithKeyerKeyingCallback(cb KeyingCallback) Option {
	return func(k *Keyer) { k.keyingCallback = cb }
}

// WithNotifiable attaches a receiver (or anything satisfying Notifiable)
// to be notified of this keyer's key-down/key-up edges, per spec §3.
func WithNotifiable(n Notifiable) Option {
	return func(k *Keyer) { k.notifiable = n }
}

// New constructs a Keyer driving sender.
func New(sender Sender, opts ...Option) *Keyer {
	k := &Keyer{sender: sender}
	k.cond = sync.NewCond(&k.mu)
	for _, o := range opts {
		o(k)
	}
	return k
}

// State returns the keyer's current state.
func (k *Keyer) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// LastError returns the error (if any) from the most recent PlayDot or
// PlayDash call the keyer made on the sender.
func (k *Keyer) LastError() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastErr
}

// SetCurtisB toggles Curtis mode B at runtime.
func (k *Keyer) SetCurtisB(enabled bool) {
	k.mu.Lock()
	k.curtisBEnabled = enabled
	k.mu.Unlock()
}

// NotifyPaddleEvent updates the dot/dash paddle and latch state, per
// spec §4.7: a paddle transitioning from released to pressed sets its
// latch, which stays set until the corresponding element has been sent
// with the paddle released again. If the keyer is Idle, a pressed
// paddle or a still-set latch starts the first element immediately.
func (k *Keyer) NotifyPaddleEvent(dotPressed, dashPressed bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if dotPressed && !k.dotPaddle {
		k.dotLatch = true
	}
	if dashPressed && !k.dashPaddle {
		k.dashLatch = true
	}
	if dotPressed && dashPressed {
		k.curtisBLatch = true
	}
	k.dotPaddle = dotPressed
	k.dashPaddle = dashPressed

	if k.state == KeyerIdle {
		dotActive := dotPressed || k.dotLatch
		dashActive := dashPressed || k.dashLatch
		switch {
		case dotActive:
			k.startElementLocked('.', false, time.Now())
		case dashActive:
			k.startElementLocked('-', false, time.Now())
		}
	}

	// Both paddles physically released: whatever element is currently
	// sounding still completes, but nothing queued by latch alone
	// survives past it — that's what makes Curtis A stop outright and
	// Curtis B send at most one opposite completion element, per spec
	// §4.7, rather than continuing to alternate as if the paddles were
	// still held.
	if !dotPressed && !dashPressed {
		k.dotLatch = false
		k.dashLatch = false
	}
}

// startElementLocked begins sending element ('.' or '-'), entering the
// A or B in-progress state depending on curtisCompletion, enqueueing
// the mark with the sender and firing the key-down edge of the keying
// callback. now is the cooperative clock value the element's deadline
// is measured from — the caller's Poll(now) tick for every transition
// except the very first, asynchronous one from NotifyPaddleEvent, which
// has no tick of its own to borrow and so supplies time.Now() directly.
// Must be called with k.mu held.
func (k *Keyer) startElementLocked(elem byte, curtisCompletion bool, now time.Time) {
	var dur int32
	if elem == '.' {
		dur = k.sender.DotDurationUs()
		if curtisCompletion {
			k.state = InDotB
		} else {
			k.state = InDotA
		}
		k.lastErr = k.sender.PlayDot()
	} else {
		dur = k.sender.DashDurationUs()
		if curtisCompletion {
			k.state = InDashB
		} else {
			k.state = InDashA
		}
		k.lastErr = k.sender.PlayDash()
	}
	k.elementEndsAt = now.Add(time.Duration(dur) * time.Microsecond)
	k.generation++
	k.fireCallbackLocked(1, now)
	k.cond.Broadcast()
}

// Poll advances the state machine against the wall clock, per spec
// §4.7's "timer owned by the client": the caller is expected to invoke
// this frequently enough (at least once per dot duration) to catch
// every element/gap boundary.
func (k *Keyer) Poll(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == KeyerIdle {
		return
	}
	if now.Before(k.elementEndsAt) {
		return
	}

	switch k.state {
	case InDotA, InDashA, InDotB, InDashB:
		k.finishElementLocked(now)
	case AfterDotA, AfterDashA:
		k.afterElementALocked(now)
	case AfterDotB, AfterDashB:
		k.goIdleLocked()
	}
}

// finishElementLocked transitions out of an in-progress element into
// its inter-element space, clearing the just-sent element's latch if
// its paddle has since released, per spec §4.7.
func (k *Keyer) finishElementLocked(now time.Time) {
	switch k.state {
	case InDotA:
		if !k.dotPaddle {
			k.dotLatch = false
		}
		k.state = AfterDotA
	case InDashA:
		if !k.dashPaddle {
			k.dashLatch = false
		}
		k.state = AfterDashA
	case InDotB:
		k.state = AfterDotB
	case InDashB:
		k.state = AfterDashB
	}

	k.fireCallbackLocked(0, now)
	k.elementEndsAt = now.Add(time.Duration(k.sender.InterMarkDurationUs()) * time.Microsecond)
	k.generation++
	k.cond.Broadcast()
}

// afterElementALocked decides, once the inter-element space following
// an ordinary (A) element has elapsed, whether to continue alternating,
// send one Curtis-B completion element, or go Idle.
func (k *Keyer) afterElementALocked(now time.Time) {
	justSent := byte('.')
	if k.state == AfterDashA {
		justSent = '-'
	}

	if next, ok := k.nextElementLocked(justSent); ok {
		k.startElementLocked(next, false, now)
		return
	}

	if k.curtisBEnabled && k.curtisBLatch {
		opposite := byte('-')
		if justSent == '-' {
			opposite = '.'
		}
		k.curtisBLatch = false
		k.startElementLocked(opposite, true, now)
		return
	}

	k.goIdleLocked()
}

// nextElementLocked implements the standard iambic alternation rule:
// prefer the opposite element if its paddle or latch is active, else
// repeat the same element, else report nothing to send.
func (k *Keyer) nextElementLocked(justSent byte) (byte, bool) {
	var oppositeActive, sameActive bool
	if justSent == '.' {
		oppositeActive = k.dashPaddle || k.dashLatch
		sameActive = k.dotPaddle || k.dotLatch
	} else {
		oppositeActive = k.dotPaddle || k.dotLatch
		sameActive = k.dashPaddle || k.dashLatch
	}

	if oppositeActive {
		if justSent == '.' {
			return '-', true
		}
		return '.', true
	}
	if sameActive {
		return justSent, true
	}
	return 0, false
}

func (k *Keyer) goIdleLocked() {
	k.state = KeyerIdle
	k.curtisBLatch = false
	k.generation++
	k.cond.Broadcast()
}

// fireCallbackLocked fires the PTT-edge callback and, if a Notifiable is
// attached, forwards the same edge to it as a mark_begin (value 1) or
// mark_end (value 0) at timestamp now — the keyer's half of spec §3's
// "notify of keying events." Errors from the receiver are not fatal to
// the keyer; only lastErr from the sender's PlayDot/PlayDash is tracked.
func (k *Keyer) fireCallbackLocked(value int, now time.Time) {
	if k.keyingCallback != nil {
		k.keyingCallback(value)
	}
	if k.notifiable == nil {
		return
	}
	tv := clock.FromTime(now)
	if value == 1 {
		_ = k.notifiable.MarkBegin(&tv)
	} else {
		_ = k.notifiable.MarkEnd(&tv)
	}
}

// WaitForElement blocks until the current in-progress element or gap
// finishes (or returns immediately if the keyer is Idle), per spec
// §4.7. Only Poll (driven by the client's own timer) ever advances the
// state that wakes this call.
func (k *Keyer) WaitForElement() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == KeyerIdle {
		return nil
	}
	start := k.generation
	for k.generation == start && k.state != KeyerIdle {
		k.cond.Wait()
	}
	return nil
}

// WaitForKeyer blocks until the keyer returns to Idle, per spec §4.7.
func (k *Keyer) WaitForKeyer() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for k.state != KeyerIdle {
		k.cond.Wait()
	}
	return nil
}
