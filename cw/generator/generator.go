// Package generator turns a stream of characters into timed tones on a
// sink, owning exactly one tone queue and one worker goroutine per spec
// §3/§4.5.
//
// Grounded on direwolf's src/morse.go (sine-table tone synthesis, the
// MORSE_TONE=800Hz default) and src/gen_tone.go's "put one chunk of
// samples to the audio device at a time" pacing, generalized from a
// single fixed-speed morse_send call into a long-lived worker loop driven
// by tonequeue.Queue's wake protocol the way direwolf's xmit_thread
// drains tq.go's transmit queue.
package generator

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/n5cw/gocw/cw"
	"github.com/n5cw/gocw/cw/audiosink"
	"github.com/n5cw/gocw/cw/tonequeue"
)

// EnvelopeShape selects how a tone's rise/fall slope is shaped, per spec
// §4.5 ("linear ramp, raised-cosine over [-pi,0), sine over [0, pi/2),
// and rectangular").
type EnvelopeShape int

const (
	RaisedCosine EnvelopeShape = iota
	Linear
	SineQuarter
	Rectangular
)

// defaultFrequencyHz matches direwolf's MORSE_TONE constant in morse.go.
const defaultFrequencyHz = 800

// defaultSlopeUs is the nominal rise/fall duration before it gets clamped
// to half of a tone's sample count (spec §4.5).
const defaultSlopeUs = 5000

// KeyingCallback is invoked on frequency 0<->nonzero transitions, value 1
// for key-down and 0 for key-up, the way a transmitter's PTT line would
// be driven in direwolf.
type KeyingCallback func(value int)

// Generator owns one audio sink, one tone queue, and one worker goroutine
// that drains it, per spec §3 ("Generator. Owns one sink, one tone
// queue, one worker thread...").
type Generator struct {
	mu sync.Mutex

	sink       audiosink.Sink
	toneWriter audiosink.ToneWriter // non-nil when sink also implements it
	queue      *tonequeue.Queue

	sampleRate   int
	periodFrames int

	speedWpm         int
	frequencyHz      int32
	volumePercent    int
	gapUnits         int
	weightingPercent int
	envelopeShape    EnvelopeShape

	dirty       bool
	dotUs       int32
	dashUs      int32
	interMarkUs int32
	eocUs       int32
	eowUs       int32

	keyingCallback  KeyingCallback
	lastFrequencyHz int32 // last nonzero/zero edge seen by the worker

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool

	log *log.Logger
}

// Option configures a new Generator.
type Option func(*Generator)

// WithLogger attaches a structured logger; nil means no logging.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithKeyingCallback registers the PTT-style edge callback.
func WithKeyingCallback(cb KeyingCallback) Option {
	return func(g *Generator) { g.keyingCallback = cb }
}

// WithEnvelopeShape overrides the default raised-cosine slope shape.
func WithEnvelopeShape(shape EnvelopeShape) Option {
	return func(g *Generator) { g.envelopeShape = shape }
}

// New constructs a Generator over an already-constructed sink, opens it,
// and starts the worker goroutine. Default parameters: 18 wpm, 800Hz
// (direwolf's MORSE_TONE), 100% volume, no gap, symmetric weighting.
func New(sink audiosink.Sink, opts ...Option) (*Generator, error) {
	queue, err := tonequeue.New(cw.DefaultToneQueueCapacity)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		sink:             sink,
		queue:            queue,
		speedWpm:         18,
		frequencyHz:      defaultFrequencyHz,
		volumePercent:    100,
		weightingPercent: 50,
		envelopeShape:    RaisedCosine,
		dirty:            true,
		stopCh:           make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	if tw, ok := sink.(audiosink.ToneWriter); ok {
		g.toneWriter = tw
	}

	rate, period, err := sink.Open()
	if err != nil {
		return nil, fmt.Errorf("generator: open sink: %w", err)
	}
	g.sampleRate = rate
	g.periodFrames = period

	g.wg.Add(1)
	g.started = true
	go g.run()
	return g, nil
}

// Stop halts the worker goroutine and closes the sink. Safe to call once.
func (g *Generator) Stop() error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	g.mu.Unlock()

	close(g.stopCh)
	g.wg.Wait()
	return g.sink.Close()
}

// Queue returns the generator's tone queue, e.g. for a keyer or straight
// key to enqueue tones directly.
func (g *Generator) Queue() *tonequeue.Queue { return g.queue }

func (g *Generator) logf(format string, args ...any) {
	if g.log != nil {
		g.log.Debugf(format, args...)
	}
}

// --- Parameter setters: each sets a private dirty flag forcing
// re-derivation before the next tone is synthesized or played, per spec
// §4.5 ("a private dirty flag is set by any setter").

func (g *Generator) SetSpeed(wpm int) error {
	if wpm < cw.SpeedMin || wpm > cw.SpeedMax {
		return fmt.Errorf("%w: speed %d", cw.ErrInvalidArgument, wpm)
	}
	g.mu.Lock()
	g.speedWpm = wpm
	g.dirty = true
	g.mu.Unlock()
	return nil
}

func (g *Generator) SetFrequency(hz int32) error {
	if hz < cw.FrequencyMin || hz > cw.FrequencyMax {
		return fmt.Errorf("%w: frequency %d", cw.ErrInvalidArgument, hz)
	}
	g.mu.Lock()
	g.frequencyHz = hz
	g.dirty = true
	g.mu.Unlock()
	return nil
}

func (g *Generator) SetVolume(percent int) error {
	if percent < cw.VolumeMin || percent > cw.VolumeMax {
		return fmt.Errorf("%w: volume %d", cw.ErrInvalidArgument, percent)
	}
	g.mu.Lock()
	g.volumePercent = percent
	g.dirty = true
	g.mu.Unlock()
	return nil
}

func (g *Generator) SetGap(units int) error {
	if units < cw.GapMin || units > cw.GapMax {
		return fmt.Errorf("%w: gap %d", cw.ErrInvalidArgument, units)
	}
	g.mu.Lock()
	g.gapUnits = units
	g.dirty = true
	g.mu.Unlock()
	return nil
}

func (g *Generator) SetWeighting(percent int) error {
	if percent < cw.WeightingMin || percent > cw.WeightingMax {
		return fmt.Errorf("%w: weighting %d", cw.ErrInvalidArgument, percent)
	}
	g.mu.Lock()
	g.weightingPercent = percent
	g.dirty = true
	g.mu.Unlock()
	return nil
}

func (g *Generator) Speed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speedWpm
}

func (g *Generator) Frequency() int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frequencyHz
}

func (g *Generator) Volume() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volumePercent
}

// DotDurationUs returns the current dot duration in microseconds, for
// clients (the iambic keyer) that schedule their own timers off the
// generator's timing rather than importing this package directly.
func (g *Generator) DotDurationUs() int32 {
	dotUs, _, _, _, _ := g.timings()
	return dotUs
}

// DashDurationUs returns the current dash duration in microseconds.
func (g *Generator) DashDurationUs() int32 {
	_, dashUs, _, _, _ := g.timings()
	return dashUs
}

// InterMarkDurationUs returns the current inter-element space duration
// in microseconds.
func (g *Generator) InterMarkDurationUs() int32 {
	_, _, interMarkUs, _, _ := g.timings()
	return interMarkUs
}

// derive recomputes dot/dash/space timings from the current parameters.
// Must be called with g.mu held.
func (g *Generator) derive() {
	if !g.dirty {
		return
	}

	dotUs := int32(cw.DotCalibration / g.speedWpm)
	weightAdjUs := int32((int64(g.weightingPercent-50) * int64(dotUs)) / 50)

	g.dotUs = dotUs + weightAdjUs
	g.dashUs = 3*dotUs + weightAdjUs
	g.interMarkUs = dotUs - weightAdjUs
	if g.interMarkUs < 0 {
		g.interMarkUs = 0
	}

	gapUs := int32(g.gapUnits) * dotUs
	g.eocUs = 3*dotUs + gapUs
	g.eowUs = 7*dotUs + (7*gapUs)/3

	g.dirty = false
}

// periodDurationUs returns the duration, in microseconds, of one sink
// period (the chunk size sink.Open negotiated). sampleRate/periodFrames
// are fixed at Open time and never touched again, so no lock is needed.
func (g *Generator) periodDurationUs() int32 {
	if g.sampleRate <= 0 || g.periodFrames <= 0 {
		return 1
	}
	return int32(int64(g.periodFrames) * 1_000_000 / int64(g.sampleRate))
}

// timings returns the derived durations, deriving first if dirty.
func (g *Generator) timings() (dotUs, dashUs, interMarkUs, eocUs, eowUs int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.derive()
	return g.dotUs, g.dashUs, g.interMarkUs, g.eocUs, g.eowUs
}

// run is the worker goroutine's loop: repeatedly dequeue, synthesize,
// write, per spec §4.5.
func (g *Generator) run() {
	defer g.wg.Done()
	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		tone, result := g.queue.Dequeue()
		switch result {
		case tonequeue.Dequeued:
			g.playTone(tone)
		case tonequeue.EmptyButRecentlyActive:
			g.flushSilence()
		case tonequeue.Idle:
			g.queue.WaitForWorker(g.stopCh)
		}
	}
}

// playTone synthesizes and writes one tone, firing the keying callback
// on a silence<->sound edge first.
func (g *Generator) playTone(tone cw.Tone) {
	g.maybeFireKeyingCallback(tone.FrequencyHz)

	if g.toneWriter != nil {
		// Sinks like Console have no PCM path at all; drive them through
		// their native on/off interface instead of synthesizing samples
		// nobody will hear.
		_ = g.toneWriter.WriteTone(tone.FrequencyHz, tone.DurationUs)
		return
	}

	samples := g.synthesize(tone)
	g.writeChunked(samples)
}

// flushSilence writes one trailing block of silence so a sink's buffers
// drain cleanly, per spec §4.5 ("EmptyButRecentlyActive: write one block
// of silence to flush the sink").
func (g *Generator) flushSilence() {
	g.maybeFireKeyingCallback(0)
	_ = g.sink.Silence()
}

// maybeFireKeyingCallback triggers the registered callback on a 0<->
// nonzero frequency edge, matching spec §4.5's keying-callback contract.
func (g *Generator) maybeFireKeyingCallback(freq int32) {
	g.mu.Lock()
	prev := g.lastFrequencyHz
	g.lastFrequencyHz = freq
	cb := g.keyingCallback
	g.mu.Unlock()

	if cb == nil {
		return
	}
	if prev == 0 && freq != 0 {
		cb(1)
	} else if prev != 0 && freq == 0 {
		cb(0)
	}
}

// writeChunked writes samples to the sink in period-sized pieces, the way
// direwolf's gen_tone.go writes one chunk ("period") to the audio device
// at a time rather than the whole tone at once.
func (g *Generator) writeChunked(samples []int16) {
	period := g.periodFrames
	if period <= 0 {
		period = len(samples)
	}
	for off := 0; off < len(samples); off += period {
		end := off + period
		if end > len(samples) {
			end = len(samples)
		}
		if err := g.sink.Write(samples[off:end]); err != nil {
			g.logf("generator: sink write error: %v", err)
			return
		}
	}
}
