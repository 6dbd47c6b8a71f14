package audiosink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullOpenReportsHighestPreferredRate(t *testing.T) {
	n := NewNull()
	rate, period, err := n.Open()
	require.NoError(t, err)
	assert.Equal(t, PreferredSampleRates[0], rate)
	assert.Equal(t, nullPeriodFrames, period)
	assert.NoError(t, n.Close())
}

func TestNullWritePacesBySampleCount(t *testing.T) {
	n := NewNull()
	var slept time.Duration
	n.sleep = func(d time.Duration) { slept = d }
	_, _, err := n.Open()
	require.NoError(t, err)

	require.NoError(t, n.Write(make([]int16, n.sampleRate)))
	assert.Equal(t, time.Second, slept)
}

func TestNullSilenceWritesOnePeriod(t *testing.T) {
	n := NewNull()
	var slept time.Duration
	n.sleep = func(d time.Duration) { slept = d }
	require.NoError(t, n.Silence())
	assert.True(t, slept > 0)
}

func TestConsoleDefaultsDevicePath(t *testing.T) {
	c := NewConsole("")
	assert.Equal(t, "/dev/console", c.device)
}

func TestConsoleWriteToneComputesDivisor(t *testing.T) {
	c := NewConsole("/dev/null")
	var gotArg int
	var gotSlept time.Duration
	c.ioctl = func(fd uintptr, arg int) error { gotArg = arg; return nil }
	c.sleep = func(d time.Duration) { gotSlept = d }

	_, _, err := c.Open()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteTone(800, 100_000))
	assert.Equal(t, consoleTickRate/800, gotArg)
	assert.Equal(t, 100*time.Millisecond, gotSlept)
}

func TestConsoleWriteToneZeroFrequencySilences(t *testing.T) {
	c := NewConsole("/dev/null")
	var gotArg int
	c.ioctl = func(fd uintptr, arg int) error { gotArg = arg; return nil }
	c.sleep = func(time.Duration) {}

	_, _, err := c.Open()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteTone(0, 50_000))
	assert.Equal(t, 0, gotArg)
}

func TestConsoleImplementsToneWriter(t *testing.T) {
	var s Sink = NewConsole("/dev/null")
	_, ok := s.(ToneWriter)
	assert.True(t, ok)
}

func TestNullDoesNotImplementToneWriter(t *testing.T) {
	var s Sink = NewNull()
	_, ok := s.(ToneWriter)
	assert.False(t, ok)
}

func TestAutoFallsBackToNullWithoutPortAudioHardware(t *testing.T) {
	a := newAuto("", &options{deviceLister: func() []string { return nil }})
	rate, period, err := a.Open()
	require.NoError(t, err)
	assert.Contains(t, PreferredSampleRates, rate)
	assert.True(t, period > 0)
	require.NoError(t, a.Write(make([]int16, period)))
	require.NoError(t, a.Silence())
	require.NoError(t, a.Close())
}

func TestAutoPrefersConfiguredDeviceOverLister(t *testing.T) {
	called := false
	a := newAuto("configured-device", &options{deviceLister: func() []string {
		called = true
		return []string{"from-lister"}
	}})
	assert.Equal(t, "configured-device", a.candidateDevice())
	assert.False(t, called)
}

func TestAutoUsesListerWhenNoDeviceConfigured(t *testing.T) {
	a := newAuto("", &options{deviceLister: func() []string {
		return []string{"hw:0,0", "hw:1,0"}
	}})
	assert.Equal(t, "hw:0,0", a.candidateDevice())
}

func TestNewSelectsSinkByKind(t *testing.T) {
	s, err := New(Spec{Kind: KindNull})
	require.NoError(t, err)
	_, ok := s.(*Null)
	assert.True(t, ok)

	s, err = New(Spec{Kind: KindConsole, Device: "/dev/null"})
	require.NoError(t, err)
	_, ok = s.(*Console)
	assert.True(t, ok)

	s, err = New(Spec{Kind: KindALSA})
	require.NoError(t, err)
	_, ok = s.(*PortAudio)
	assert.True(t, ok)

	_, err = New(Spec{Kind: Kind(99)})
	assert.Error(t, err)
}

func TestKindStringNames(t *testing.T) {
	assert.Equal(t, "null", KindNull.String())
	assert.Equal(t, "console", KindConsole.String())
	assert.Equal(t, "auto", KindAuto.String())
	assert.Equal(t, "none", KindNone.String())
}
