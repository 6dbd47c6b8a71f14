package generator

import (
	"fmt"

	"github.com/n5cw/gocw/cw"
	"github.com/n5cw/gocw/cw/tables"
)

// markTone builds a mark (dot or dash) tone at the generator's current
// frequency, Standard-shaped per spec §8 scenario 1.
func (g *Generator) markTone(durationUs int32) cw.Tone {
	return cw.Tone{FrequencyHz: g.Frequency(), DurationUs: durationUs, SlopeMode: cw.Standard}
}

// silentTone builds a NoSlopes silent spacer tone.
func silentTone(durationUs int32) cw.Tone {
	if durationUs < 0 {
		durationUs = 0
	}
	return cw.Tone{FrequencyHz: 0, DurationUs: durationUs, SlopeMode: cw.NoSlopes}
}

// PlayDot enqueues one dot mark plus its trailing inter-mark space, per
// spec §4.5. Intended for sending a lone element (e.g. from the iambic
// keyer, which emits one mark at a time); PlayCharacter/PlayRepresentation
// manage inter-symbol spacing themselves instead of calling this.
func (g *Generator) PlayDot() error {
	dotUs, _, interMarkUs, _, _ := g.timings()
	if err := g.queue.Enqueue(g.markTone(dotUs)); err != nil {
		return err
	}
	return g.queue.Enqueue(silentTone(interMarkUs))
}

// PlayDash enqueues one dash mark plus its trailing inter-mark space.
func (g *Generator) PlayDash() error {
	_, dashUs, interMarkUs, _, _ := g.timings()
	if err := g.queue.Enqueue(g.markTone(dashUs)); err != nil {
		return err
	}
	return g.queue.Enqueue(silentTone(interMarkUs))
}

// PlayEOCSpace enqueues the silence that completes an inter-character
// gap, topping up the inter-mark space a preceding mark already left
// behind (spec §4.5: "eoc_us - inter_mark_us"). Exposed standalone for
// callers (e.g. the keyer) that already enqueued a trailing inter-mark
// space via PlayDot/PlayDash and now need to extend it to a full gap.
func (g *Generator) PlayEOCSpace() error {
	_, _, interMarkUs, eocUs, _ := g.timings()
	return g.queue.Enqueue(silentTone(eocUs - interMarkUs))
}

// PlayEOWSpace enqueues the additional silence that extends an
// inter-character gap into an inter-word gap (spec §4.5: "eow_us -
// eoc_us").
func (g *Generator) PlayEOWSpace() error {
	_, _, _, eocUs, eowUs := g.timings()
	return g.queue.Enqueue(silentTone(eowUs - eocUs))
}

// PlayRepresentation enqueues a raw dot/dash string directly, bypassing
// the character table: a mark per symbol, an inter-mark space between
// symbols, and — unless partial — a full end-of-character space after
// the last symbol instead of a plain inter-mark space (spec §8 scenario
// 1: 'A' at 12wpm yields exactly four tones, the last one the full
// 300000us end-of-character gap, not an inter-mark gap followed by a
// separate top-up).
func (g *Generator) PlayRepresentation(rep string, partial bool) error {
	if rep == "" {
		return fmt.Errorf("%w: empty representation", cw.ErrInvalidArgument)
	}

	dotUs, dashUs, interMarkUs, eocUs, _ := g.timings()
	runes := []rune(rep)
	for i, sym := range runes {
		var mark cw.Tone
		switch sym {
		case '.':
			mark = g.markTone(dotUs)
		case '-':
			mark = g.markTone(dashUs)
		default:
			return fmt.Errorf("%w: representation %q", cw.ErrInvalidArgument, rep)
		}
		if err := g.queue.Enqueue(mark); err != nil {
			return err
		}

		last := i == len(runes)-1
		switch {
		case !last:
			if err := g.queue.Enqueue(silentTone(interMarkUs)); err != nil {
				return err
			}
		case partial:
			if err := g.queue.Enqueue(silentTone(interMarkUs)); err != nil {
				return err
			}
		default:
			if err := g.queue.Enqueue(silentTone(eocUs)); err != nil {
				return err
			}
		}
	}
	return nil
}

// PlayForever enqueues a tone at the current frequency with Forever set,
// per spec §4.1: the worker re-dequeues it as its own head without ever
// advancing past it, so the tone sounds continuously until StopForever
// flushes the queue. Used by the straight key: key-down starts a forever
// tone, key-up stops it.
//
// The tone's duration is one sink period, not some nominal 1us: each
// re-dequeue cycle must synthesize a real period_frames-sized chunk and
// write it, or (for sinks with no PCM path) sleep a real period, so the
// worker loop paces itself through sink.Write/WriteTone like any other
// tone instead of spinning Dequeue->playTone with no samples produced
// and no time elapsed.
func (g *Generator) PlayForever() error {
	tone := g.markTone(g.periodDurationUs())
	tone.Forever = true
	return g.queue.Enqueue(tone)
}

// StopForever flushes the tone queue, ending whatever forever tone
// PlayForever started and silencing the sink immediately.
func (g *Generator) StopForever() error {
	g.queue.Flush()
	g.flushSilence()
	return nil
}

// PlayCharacter looks up c's representation and enqueues it, appending an
// end-of-character space unless partial is true (used by a caller
// stringing several characters together as one procedural run).
func (g *Generator) PlayCharacter(c rune, partial bool) error {
	rep, ok := tables.CharToRepresentation(c)
	if !ok {
		return fmt.Errorf("%w: %q", cw.ErrNoSuchCharacter, c)
	}
	return g.PlayRepresentation(rep, partial)
}

// PlayString sends s one character at a time, turning each literal space
// into an end-of-word gap. On the first unknown character it fails with
// ErrNoSuchCharacter; tones already enqueued for earlier characters are
// left intact, per spec §4.5.
func (g *Generator) PlayString(s string) error {
	for _, c := range s {
		if c == ' ' {
			if err := g.PlayEOWSpace(); err != nil {
				return err
			}
			continue
		}
		if err := g.PlayCharacter(c, false); err != nil {
			return err
		}
	}
	return nil
}
