package audiosink

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// portAudioPeriodFrames matches Null's period (~10ms at 48kHz).
const portAudioPeriodFrames = 480

var (
	paInitMu    sync.Mutex
	paInitCount int
)

func paInitialize() error {
	paInitMu.Lock()
	defer paInitMu.Unlock()
	if paInitCount == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	paInitCount++
	return nil
}

func paTerminate() {
	paInitMu.Lock()
	defer paInitMu.Unlock()
	paInitCount--
	if paInitCount == 0 {
		_ = portaudio.Terminate()
	}
}

// PortAudio is a real PCM sink backed by gordonklaus/portaudio, standing
// in for spec's OSS/ALSA/PulseAudio backends behind one portable API.
// The teacher's go.mod declares this dependency but never imports it;
// this sink is its first use.
type PortAudio struct {
	device string
	stream *portaudio.Stream
	out    []int16
}

// NewPortAudio constructs a PortAudio sink. The device name is stored but
// not used: Probe and Open always use the host's default output device,
// whatever device is given.
func NewPortAudio(device string) *PortAudio {
	return &PortAudio{device: device}
}

func (p *PortAudio) Probe(device string) bool {
	if err := paInitialize(); err != nil {
		return false
	}
	defer paTerminate()
	_, err := portaudio.DefaultHostApi()
	return err == nil
}

func (p *PortAudio) Open() (int, int, error) {
	if err := paInitialize(); err != nil {
		return 0, 0, fmt.Errorf("audiosink: portaudio init: %w", err)
	}

	var lastErr error
	for _, rate := range PreferredSampleRates {
		out := make([]int16, portAudioPeriodFrames)
		stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(out), &out)
		if err != nil {
			lastErr = err
			continue
		}
		if err := stream.Start(); err != nil {
			_ = stream.Close()
			lastErr = err
			continue
		}
		p.stream = stream
		p.out = out
		return rate, portAudioPeriodFrames, nil
	}

	paTerminate()
	if lastErr == nil {
		lastErr = errNoSampleRateAccepted
	}
	return 0, 0, fmt.Errorf("audiosink: portaudio open: %w", lastErr)
}

func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	paTerminate()
	return err
}

func (p *PortAudio) Write(samples []int16) error {
	if p.stream == nil {
		return fmt.Errorf("audiosink: portaudio write on closed sink")
	}
	n := copy(p.out, samples)
	for i := n; i < len(p.out); i++ {
		p.out[i] = 0
	}
	return p.stream.Write()
}

func (p *PortAudio) Silence() error {
	return p.Write(make([]int16, len(p.out)))
}
