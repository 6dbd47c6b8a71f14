package audiosink

import (
	"time"
)

// nullPeriodFrames is the chunk size Null reports from Open, matching the
// other backends' ~10ms period (grounded on direwolf's ONE_BUF_TIME
// constant in src/audio.go, "originally 40 [ms]... try 10 for lower
// latency").
const nullPeriodFrames = 480 // 10ms at 48kHz

// Null is always writable; Write is a cooperative delay so a generator
// running against Null still paces itself in real time, the way spec
// §4.4 describes: "a cooperative delay of tone.duration_us that splits
// the tone's time into fixed-rate chunks so other work can interleave."
type Null struct {
	sampleRate int
	sleep      func(time.Duration)
}

// NewNull constructs a Null sink. Sample rate is fixed at the highest
// preferred rate since there is no real hardware to negotiate with.
func NewNull() *Null {
	return &Null{sampleRate: PreferredSampleRates[0], sleep: time.Sleep}
}

func (n *Null) Probe(device string) bool { return true }

func (n *Null) Open() (int, int, error) {
	return n.sampleRate, nullPeriodFrames, nil
}

func (n *Null) Close() error { return nil }

func (n *Null) Write(samples []int16) error {
	d := time.Duration(len(samples)) * time.Second / time.Duration(n.sampleRate)
	n.sleep(d)
	return nil
}

func (n *Null) Silence() error {
	return n.Write(make([]int16, nullPeriodFrames))
}
