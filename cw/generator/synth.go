package generator

import (
	"math"

	"github.com/n5cw/gocw/cw"
)

// synthesize renders one tone to signed 16-bit mono PCM at the
// generator's sample rate, per spec §4.5:
//
//	n_samples = duration_us * sample_rate / 1_000_000
//
// Slope sample counts are clamped to at most half of n_samples so a very
// short tone's rise and fall never overlap. direwolf's morse_tone (in
// src/morse.go) walks a fixed sine table with a phase accumulator and
// never shapes the envelope at all (the PTT relay does the "shaping"
// mechanically); this computes sin() directly per sample and multiplies
// in an envelope, since spec's slope modes have no equivalent in the
// teacher.
func (g *Generator) synthesize(tone cw.Tone) []int16 {
	sampleRate, volumePercent, shape := g.synthParams()

	n := int(int64(tone.DurationUs) * int64(sampleRate) / 1_000_000)
	if n <= 0 {
		return nil
	}

	risingN, fallingN := slopeSampleCounts(tone.SlopeMode, n, sampleRate)

	amplitude := float64(32767) * float64(volumePercent) / 100.0
	out := make([]int16, n)

	if tone.FrequencyHz == 0 {
		// Silence still consumes n samples' worth of wall-clock time; no
		// envelope or oscillator needed.
		return out
	}

	angularStep := 2 * math.Pi * float64(tone.FrequencyHz) / float64(sampleRate)
	for i := 0; i < n; i++ {
		env := envelopeAt(i, n, risingN, fallingN, shape)
		s := amplitude * env * math.Sin(angularStep*float64(i))
		out[i] = int16(s)
	}
	return out
}

func (g *Generator) synthParams() (sampleRate int, volumePercent int, shape EnvelopeShape) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sampleRate, g.volumePercent, g.envelopeShape
}

// slopeSampleCounts derives the rising/falling ramp lengths for a tone,
// per spec §4.5 ("bounded so they never exceed half of n_samples") and
// ("Slope-only tones: if slope_mode is RisingOnly or FallingOnly, the
// tone has no sustain portion and the slope occupies the entire
// duration").
func slopeSampleCounts(mode cw.SlopeMode, n, sampleRate int) (risingN, fallingN int) {
	if mode == cw.NoSlopes {
		return 0, 0
	}

	half := n / 2
	nominal := defaultSlopeUs * sampleRate / 1_000_000
	if nominal > half {
		nominal = half
	}

	switch mode {
	case cw.RisingOnly:
		return n, 0
	case cw.FallingOnly:
		return 0, n
	default: // cw.Standard
		return nominal, nominal
	}
}

// envelopeAt returns the amplitude multiplier in [0,1] for sample i of n,
// given the rising/falling ramp lengths and the configured shape.
func envelopeAt(i, n, risingN, fallingN int, shape EnvelopeShape) float64 {
	if shape == Rectangular {
		return 1.0
	}
	if risingN > 0 && i < risingN {
		return rampFraction(float64(i)/float64(risingN), shape)
	}
	if fallingN > 0 && i >= n-fallingN {
		t := float64(n-1-i) / float64(fallingN)
		return rampFraction(t, shape)
	}
	return 1.0
}

// rampFraction maps progress p in [0,1) through a ramp to an amplitude
// fraction in [0,1), per spec §4.5's three named shapes.
func rampFraction(p float64, shape EnvelopeShape) float64 {
	switch shape {
	case Linear:
		return p
	case SineQuarter:
		// "sine over [0, pi/2)"
		return math.Sin(p * math.Pi / 2)
	default: // RaisedCosine: "raised-cosine over [-pi, 0)"
		angle := math.Pi * (p - 1)
		return (math.Cos(angle) + 1) / 2
	}
}
