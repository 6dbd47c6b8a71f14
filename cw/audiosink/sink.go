// Package audiosink implements the polymorphic audio sink capability set
// from spec §4.4: Probe/Open/Close/Write/Silence, with Null, Console,
// PortAudio, and Auto (soundcard-discovery) implementations.
//
// direwolf's own src/audio.go talks to ALSA/OSS directly through cgo and
// ioctls; this module generalizes that into one portable PCM backend
// (gordonklaus/portaudio, declared in the teacher's go.mod but never
// actually imported there) behind the same Sink interface the spec
// names, so the generator can treat every backend identically.
package audiosink

import (
	"errors"
	"fmt"

	"github.com/n5cw/gocw/cw"
)

// Kind names the sink variant, kept as a selector constant so config
// files and call sites can keep spec's vocabulary even though OSS, ALSA,
// and PulseAudio now share one PCM implementation.
type Kind int

const (
	KindNone Kind = iota
	KindNull
	KindConsole
	KindOSS
	KindALSA
	KindPulseAudio
	KindAuto
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindConsole:
		return "console"
	case KindOSS:
		return "oss"
	case KindALSA:
		return "alsa"
	case KindPulseAudio:
		return "pulse"
	case KindAuto:
		return "auto"
	default:
		return "none"
	}
}

// PreferredSampleRates is probed in order, highest first, until the sink
// accepts one, per spec §4.4.
var PreferredSampleRates = []int{48000, 44100, 22050, 11025, 8000}

// Sink is the capability set every audio backend implements.
type Sink interface {
	// Probe reports whether device looks usable without fully opening it.
	Probe(device string) bool
	// Open opens the sink at one of PreferredSampleRates (trying each in
	// order) and returns the sample rate it accepted plus the frame
	// count of one "period" — the chunk size the generator should write
	// in, obtained from the sink the way spec §4.5's worker loop
	// requires.
	Open() (sampleRate, periodFrames int, err error)
	// Close releases the sink.
	Close() error
	// Write writes signed 16-bit native-endian mono PCM samples.
	Write(samples []int16) error
	// Silence writes one period of silence, used to flush a sink when
	// the tone queue transitions to EmptyButRecentlyActive.
	Silence() error
}

// ToneWriter is implemented by sinks that cannot produce arbitrary PCM
// and instead expose only an on/off buzzer at a given frequency (the
// Console sink). The generator checks for this interface and, when
// present, bypasses sample synthesis entirely and calls WriteTone once
// per tone instead of Write per period.
type ToneWriter interface {
	// WriteTone plays frequencyHz (0 for silence) for durationUs
	// microseconds, blocking for the duration the way a PCM sink's
	// chunked Write calls would.
	WriteTone(frequencyHz int32, durationUs int32) error
}

// Spec is the sink selection: which Kind, and an optional device string
// (empty means the sink's own default).
type Spec struct {
	Kind   Kind
	Device string
}

// Open constructs and opens the sink named by spec.
func Open(spec Spec, opts ...Option) (Sink, int, int, error) {
	sink, err := New(spec, opts...)
	if err != nil {
		return nil, 0, 0, err
	}
	rate, period, err := sink.Open()
	if err != nil {
		return nil, 0, 0, err
	}
	return sink, rate, period, nil
}

// Option configures sink construction (currently only used by Auto to
// thread through a device prober).
type Option func(*options)

type options struct {
	deviceLister func() []string
}

// WithDeviceLister overrides Auto's device discovery, which otherwise uses
// defaultDeviceLister (go-udev on Linux, see auto_linux.go).
func WithDeviceLister(f func() []string) Option {
	return func(o *options) { o.deviceLister = f }
}

// New constructs (but does not open) the sink named by spec.Kind.
func New(spec Spec, opts ...Option) (Sink, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	switch spec.Kind {
	case KindNone, KindNull:
		return NewNull(), nil
	case KindConsole:
		return NewConsole(spec.Device), nil
	case KindOSS, KindALSA, KindPulseAudio:
		return NewPortAudio(spec.Device), nil
	case KindAuto:
		return newAuto(spec.Device, o), nil
	default:
		return nil, fmt.Errorf("%w: unknown sink kind %v", cw.ErrInvalidArgument, spec.Kind)
	}
}

var errNoSampleRateAccepted = errors.New("audiosink: no preferred sample rate was accepted")
