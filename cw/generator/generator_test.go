package generator

import (
	"sync"
	"testing"
	"time"

	"github.com/n5cw/gocw/cw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink implements both audiosink.Sink and audiosink.ToneWriter so
// tests observe the exact (frequency, duration, slope-implied) tone
// sequence the generator enqueues, without needing to reconstruct it from
// synthesized PCM.
type recordingSink struct {
	mu    sync.Mutex
	tones []toneCall
}

type toneCall struct {
	FrequencyHz int32
	DurationUs  int32
}

func (s *recordingSink) Probe(string) bool      { return true }
func (s *recordingSink) Open() (int, int, error) { return 48000, 480, nil }
func (s *recordingSink) Close() error            { return nil }
func (s *recordingSink) Silence() error          { return nil }
func (s *recordingSink) Write([]int16) error     { return nil }

func (s *recordingSink) WriteTone(frequencyHz int32, durationUs int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tones = append(s.tones, toneCall{frequencyHz, durationUs})
	return nil
}

func (s *recordingSink) snapshot() []toneCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]toneCall, len(s.tones))
	copy(out, s.tones)
	return out
}

func waitForDrain(t *testing.T, g *Generator) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		_ = g.Queue().WaitForToneQueue()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tone queue to drain")
	}
}

func TestPlayCharacterAScenario(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(sink)
	require.NoError(t, err)
	defer g.Stop()

	require.NoError(t, g.SetSpeed(12))
	require.NoError(t, g.PlayCharacter('A', false))
	waitForDrain(t, g)

	want := []toneCall{
		{800, 100000},
		{0, 100000},
		{800, 300000},
		{0, 300000},
	}
	assert.Equal(t, want, sink.snapshot())
}

func TestPlayStringInsertsEndOfWordSpace(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(sink)
	require.NoError(t, err)
	defer g.Stop()

	require.NoError(t, g.SetSpeed(12))
	require.NoError(t, g.PlayString("E E"))
	waitForDrain(t, g)

	tones := sink.snapshot()
	require.True(t, len(tones) >= 5)
	// 'E' is a single dot; after the first 'E' comes its end-of-character
	// space (300000us dot_us*3), then the word-extension on top of it.
	assert.Equal(t, toneCall{0, 300000}, tones[1])
	assert.Equal(t, toneCall{0, 400000}, tones[2])
	last := tones[len(tones)-1]
	assert.Equal(t, int32(0), last.FrequencyHz)
}

func TestPlayStringUnknownCharacterFails(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(sink)
	require.NoError(t, err)
	defer g.Stop()

	err = g.PlayString("A\x01B")
	assert.ErrorIs(t, err, cw.ErrNoSuchCharacter)
}

func TestSetSpeedRejectsOutOfRange(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(sink)
	require.NoError(t, err)
	defer g.Stop()

	assert.ErrorIs(t, g.SetSpeed(3), cw.ErrInvalidArgument)
	assert.ErrorIs(t, g.SetSpeed(61), cw.ErrInvalidArgument)
}

func TestSetFrequencyRejectsOutOfRange(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(sink)
	require.NoError(t, err)
	defer g.Stop()

	assert.ErrorIs(t, g.SetFrequency(-1), cw.ErrInvalidArgument)
	assert.ErrorIs(t, g.SetFrequency(4001), cw.ErrInvalidArgument)
}

func TestKeyingCallbackFiresOnEdges(t *testing.T) {
	sink := &recordingSink{}
	var mu sync.Mutex
	var values []int
	g, err := New(sink, WithKeyingCallback(func(v int) {
		mu.Lock()
		values = append(values, v)
		mu.Unlock()
	}))
	require.NoError(t, err)
	defer g.Stop()

	require.NoError(t, g.SetSpeed(12))
	require.NoError(t, g.PlayCharacter('A', false))
	waitForDrain(t, g)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 0, 1, 0}, values)
}

func TestDeriveIsLazyUntilNextTimingsRead(t *testing.T) {
	sink := &recordingSink{}
	g, err := New(sink)
	require.NoError(t, err)
	defer g.Stop()

	require.NoError(t, g.SetSpeed(20))
	dotUs, dashUs, _, _, _ := g.timings()
	assert.Equal(t, int32(cw.DotCalibration/20), dotUs)
	assert.Equal(t, 3*dotUs, dashUs)
}
