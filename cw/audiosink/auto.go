package audiosink

import "fmt"

// Auto is the "Soundcard (auto)" meta-sink from spec §4.4: it tries
// PortAudio first, falling back to Null so playback degrades gracefully
// rather than failing outright. A configured device, or else the first
// one discovered (via go-udev on Linux, see auto_linux.go), is handed to
// NewPortAudio, but PortAudio opens the host's default output device
// regardless of that name.
type Auto struct {
	device   string
	lister   func() []string
	delegate Sink
}

func newAuto(device string, o *options) *Auto {
	lister := o.deviceLister
	if lister == nil {
		lister = defaultDeviceLister
	}
	return &Auto{device: device, lister: lister}
}

func (a *Auto) candidateDevice() string {
	if a.device != "" {
		return a.device
	}
	for _, d := range a.lister() {
		return d
	}
	return ""
}

func (a *Auto) Probe(device string) bool {
	// Null always accepts, so Auto is never unusable; Open still prefers
	// PortAudio when it is available.
	return true
}

func (a *Auto) Open() (int, int, error) {
	pa := NewPortAudio(a.candidateDevice())
	if rate, period, err := pa.Open(); err == nil {
		a.delegate = pa
		return rate, period, nil
	}
	n := NewNull()
	rate, period, _ := n.Open()
	a.delegate = n
	return rate, period, nil
}

func (a *Auto) Close() error {
	if a.delegate == nil {
		return nil
	}
	return a.delegate.Close()
}

func (a *Auto) Write(samples []int16) error {
	if a.delegate == nil {
		return fmt.Errorf("audiosink: auto write before open")
	}
	return a.delegate.Write(samples)
}

func (a *Auto) Silence() error {
	if a.delegate == nil {
		return nil
	}
	return a.delegate.Silence()
}
