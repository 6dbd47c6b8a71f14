// Package receiver decodes timed key-down/key-up events into Morse
// representations and characters, per spec §3/§4.6.
//
// direwolf has no Morse receive path of its own (src/morse.go only ever
// sends, for station ID); this package is grounded on the demodulator
// state-machine discipline of src/demod_state.go and src/hdlc_rec.go
// (explicit state enums, a dirty/resync flag before using derived
// thresholds, circular statistics buffers) generalized from bit-slicing
// an audio waveform to classifying mark durations against dot/dash
// windows, which is the domain this engine actually targets.
package receiver

import (
	"fmt"
	"math"
	"sync"

	"github.com/n5cw/gocw/cw"
	"github.com/n5cw/gocw/cw/clock"
)

// State is the receiver's state machine position, per spec §3.
type State int

const (
	Idle State = iota
	Mark
	Space
	EocGap
	EowGap
	EocGapErr
	EowGapErr
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Mark:
		return "Mark"
	case Space:
		return "Space"
	case EocGap:
		return "EocGap"
	case EowGap:
		return "EowGap"
	case EocGapErr:
		return "EocGapErr"
	case EowGapErr:
		return "EowGapErr"
	default:
		return "State(?)"
	}
}

const statsRingSize = 256
const averagingRingSize = 4

type statEntry struct {
	kind  cw.StatKind
	delta int32
	valid bool
}

// avgRing is the 4-slot moving-average ring used by adaptive speed
// tracking, one per mark type, per spec §3/§4.6.
type avgRing struct {
	vals   [averagingRingSize]int32
	next   int
	filled int
}

func (r *avgRing) push(v int32) {
	r.vals[r.next] = v
	r.next = (r.next + 1) % averagingRingSize
	if r.filled < averagingRingSize {
		r.filled++
	}
}

func (r *avgRing) avg() int32 {
	if r.filled == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < r.filled; i++ {
		sum += int64(r.vals[i])
	}
	return int32(sum / int64(r.filled))
}

// Receiver decodes mark/space timings into representations and
// characters via a polling API, per spec §4.6.
type Receiver struct {
	mu sync.Mutex

	state State

	markBeginTs    clock.Timeval
	markEndTs      clock.Timeval
	preSpikeMarkEnd clock.Timeval

	representation []byte // '.'/'-' bytes, at most cw.ReceiveBufferCapacity

	speedWpm              float64
	tolerance             int
	gapUnits              int
	isAdaptive            bool
	noiseSpikeThresholdUs int32

	dirty   bool
	dotIdeal int32
	dotMin, dotMax   int32
	dashMin, dashMax int32
	eomMin, eomMax   int32
	eocMin, eocMax   int32

	dotRing, dashRing avgRing

	stats    [statsRingSize]statEntry
	statsIdx int

	pendingErr error
}

// Option configures a new Receiver.
type Option func(*Receiver)

// WithSpeed sets the initial fixed-mode speed (wpm).
func WithSpeed(wpm float64) Option {
	return func(r *Receiver) { r.speedWpm = wpm }
}

// WithTolerance sets the fixed-mode tolerance percentage.
func WithTolerance(percent int) Option {
	return func(r *Receiver) { r.tolerance = percent }
}

// WithAdaptive enables adaptive speed tracking from construction.
func WithAdaptive(adaptive bool) Option {
	return func(r *Receiver) { r.isAdaptive = adaptive }
}

// New constructs a Receiver. Defaults: 18 wpm fixed mode, tolerance 50,
// no gap extension, noise spike threshold per
// cw.NoiseSpikeThresholdDefaultUs.
func New(opts ...Option) *Receiver {
	r := &Receiver{
		speedWpm:              18,
		tolerance:             50,
		noiseSpikeThresholdUs: cw.NoiseSpikeThresholdDefaultUs,
		dirty:                 true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetSpeed sets the fixed-mode speed. Refused while adaptive tracking is
// on, per spec design note and cw.ErrAdaptiveMode.
func (r *Receiver) SetSpeed(wpm float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isAdaptive {
		return cw.ErrAdaptiveMode
	}
	if wpm < cw.SpeedMin || wpm > cw.SpeedMax {
		return fmt.Errorf("%w: speed %v", cw.ErrInvalidArgument, wpm)
	}
	r.speedWpm = wpm
	r.dirty = true
	return nil
}

// SetTolerance sets the fixed-mode tolerance percentage, 0..90.
func (r *Receiver) SetTolerance(percent int) error {
	if percent < cw.ToleranceMin || percent > cw.ToleranceMax {
		return fmt.Errorf("%w: tolerance %d", cw.ErrInvalidArgument, percent)
	}
	r.mu.Lock()
	r.tolerance = percent
	r.dirty = true
	r.mu.Unlock()
	return nil
}

// SetGap sets the Farnsworth-style gap extension, 0..60 units.
func (r *Receiver) SetGap(units int) error {
	if units < cw.GapMin || units > cw.GapMax {
		return fmt.Errorf("%w: gap %d", cw.ErrInvalidArgument, units)
	}
	r.mu.Lock()
	r.gapUnits = units
	r.dirty = true
	r.mu.Unlock()
	return nil
}

// SetAdaptive toggles adaptive speed tracking.
func (r *Receiver) SetAdaptive(adaptive bool) {
	r.mu.Lock()
	r.isAdaptive = adaptive
	r.dirty = true
	r.mu.Unlock()
}

// SetNoiseSpikeThreshold sets the noise gate in microseconds.
func (r *Receiver) SetNoiseSpikeThreshold(us int32) {
	r.mu.Lock()
	r.noiseSpikeThresholdUs = us
	r.mu.Unlock()
}

// Speed returns the current speed estimate (fixed setting, or the
// adaptive tracker's latest derived value).
func (r *Receiver) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speedWpm
}

// State returns the current state machine position.
func (r *Receiver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// derive recomputes the classification windows from the current
// parameters, per spec §3: "in fixed mode, windows are symmetric about
// ideal by a tolerance percentage; in adaptive mode, dot_min = 0,
// dot_max = 2*dot_ideal, dash_min = dot_max, dash_max = infinity."
func (r *Receiver) derive() {
	if !r.dirty {
		return
	}

	dotIdeal := int32(cw.DotCalibration / r.speedWpm)
	r.dotIdeal = dotIdeal

	if r.isAdaptive {
		r.dotMin = 0
		r.dotMax = 2 * dotIdeal
		r.dashMin = r.dotMax // Open Question (a): intentional overlap, preserved as-is.
		r.dashMax = math.MaxInt32
	} else {
		tol := int32(r.tolerance)
		r.dotMin = dotIdeal - dotIdeal*tol/100
		r.dotMax = dotIdeal + dotIdeal*tol/100
		dashIdeal := 3 * dotIdeal
		r.dashMin = dashIdeal - dashIdeal*tol/100
		r.dashMax = dashIdeal + dashIdeal*tol/100
	}

	r.eomMin = 0
	r.eomMax = r.dotMax

	gapUs := int32(r.gapUnits) * dotIdeal
	eocIdeal := 3*dotIdeal + gapUs
	eowIdeal := 7*dotIdeal + (7*gapUs)/3
	r.eocMin = r.dotMax
	r.eocMax = (eocIdeal + eowIdeal) / 2

	r.dirty = false
}

// classify returns the mark classification for a duration, per spec
// §4.6: dot window checked first, so at the adaptive-mode boundary where
// dash_min == dot_max the duration is reported as Dot (Open Question
// (a) — preserved as the documented behavior, not fixed).
func classify(d, dotMin, dotMax, dashMin, dashMax int32) cw.Mark {
	if d >= dotMin && d <= dotMax {
		return cw.MarkDot
	}
	if d >= dashMin && d <= dashMax {
		return cw.MarkDash
	}
	return cw.MarkUnknown
}

// Windows exposes the currently derived classification windows, mostly
// for tests and diagnostics.
func (r *Receiver) Windows() (dotMin, dotMax, dashMin, dashMax int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.derive()
	return r.dotMin, r.dotMax, r.dashMin, r.dashMax
}

// Classify classifies a raw duration against the receiver's current
// windows without touching any state, useful for testing the boundary
// behavior directly.
func (r *Receiver) Classify(durationUs int32) cw.Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.derive()
	return classify(durationUs, r.dotMin, r.dotMax, r.dashMin, r.dashMax)
}

func (r *Receiver) recordStat(kind cw.StatKind, delta int32) {
	r.stats[r.statsIdx%statsRingSize] = statEntry{kind: kind, delta: delta, valid: true}
	r.statsIdx++
}

// Statistics returns the standard deviation of recorded deltas
// (actual-ideal) of the given kind, per spec §4.6. Returns 0 if nothing
// of that kind has been recorded yet.
func (r *Receiver) Statistics(kind cw.StatKind) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deltas []float64
	for _, e := range r.stats {
		if e.valid && e.kind == kind {
			deltas = append(deltas, float64(e.delta))
		}
	}
	if len(deltas) == 0 {
		return 0
	}

	var mean float64
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))

	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))

	return math.Sqrt(variance)
}

// Clear resets the receiver to Idle with an empty representation buffer.
// Idempotent: calling it twice is equivalent to calling it once.
func (r *Receiver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *Receiver) clearLocked() {
	r.state = Idle
	r.representation = r.representation[:0]
	r.markBeginTs = clock.Timeval{}
	r.markEndTs = clock.Timeval{}
	r.pendingErr = nil
}

// Reset clears the receiver and its adaptive tracking rings and
// statistics, returning it to the state New would produce (parameters
// are kept).
func (r *Receiver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.dotRing = avgRing{}
	r.dashRing = avgRing{}
	r.stats = [statsRingSize]statEntry{}
	r.statsIdx = 0
	r.dirty = true
}
