package receiver

import (
	"fmt"

	"github.com/n5cw/gocw/cw"
	"github.com/n5cw/gocw/cw/clock"
	"github.com/n5cw/gocw/cw/tables"
)

// MarkBegin records the start of a key-down event, transitioning to Mark.
func (r *Receiver) MarkBegin(ts *clock.Timeval) error {
	tv, err := clock.ValidateTimestamp(ts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Mark:
		return fmt.Errorf("%w: mark_begin while already in Mark", cw.ErrInvalidArgument)
	case EowGap, EocGapErr, EowGapErr:
		// Per spec's terminal-state contract, EowGap/EowGapErr leave Idle
		// only via an explicit Clear(); EocGapErr is a live error state
		// whose representation buffer a blind mark_begin would otherwise
		// silently reuse or corrupt. Reject all three until cleared.
		return fmt.Errorf("%w: mark_begin in terminal state %s; call Clear first", cw.ErrInvalidArgument, r.state)
	}
	if r.state == Space {
		gap := clock.DiffMicros(r.markEndTs, tv)
		r.derive()
		r.recordStat(cw.StatInterMarkSpace, gap-r.dotIdeal)
	}

	r.preSpikeMarkEnd = r.markEndTs
	r.markBeginTs = tv
	r.state = Mark
	return nil
}

// MarkEnd records the end of a key-down event: classifies its duration,
// applies the noise gate, appends to the representation buffer, and
// transitions to Space — or to an error state on overflow or an
// unclassifiable duration, per spec §4.6.
func (r *Receiver) MarkEnd(ts *clock.Timeval) error {
	tv, err := clock.ValidateTimestamp(ts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Mark {
		return fmt.Errorf("%w: mark_end without mark_begin", cw.ErrInvalidArgument)
	}
	r.derive()

	duration := clock.DiffMicros(r.markBeginTs, tv)

	if duration <= r.noiseSpikeThresholdUs {
		// Noise gate: discard the mark, restore the mark_end timestamp
		// that was current before this mark began, and revert to
		// whichever state preceded it.
		r.markEndTs = r.preSpikeMarkEnd
		if len(r.representation) > 0 {
			r.state = Space
		} else {
			r.state = Idle
		}
		return cw.ErrSpikeRejected
	}

	mark := classify(duration, r.dotMin, r.dotMax, r.dashMin, r.dashMax)
	if mark == cw.MarkUnknown {
		r.state = EocGapErr
		r.markEndTs = tv
		r.pendingErr = fmt.Errorf("%w: duration %dus unclassifiable", cw.ErrInvalidArgument, duration)
		return r.pendingErr
	}

	if err := r.appendMarkLocked(mark, tv); err != nil {
		return err
	}

	if mark == cw.MarkDot {
		r.recordStat(cw.StatDot, duration-r.dotIdeal)
	} else {
		r.recordStat(cw.StatDash, duration-3*r.dotIdeal)
	}

	r.markEndTs = tv
	r.state = Space

	if r.isAdaptive {
		r.updateAdaptiveTrackingLocked(mark, duration)
	}
	return nil
}

// updateAdaptiveTrackingLocked feeds an accepted mark's duration into its
// averaging ring and recomputes the speed estimate and classification
// windows, per spec §4.6's "two synchronization passes" (derive already
// computes the fixed-style ideal before branching into the adaptive
// override, so a single derive call here reproduces both passes).
func (r *Receiver) updateAdaptiveTrackingLocked(mark cw.Mark, duration int32) {
	if mark == cw.MarkDot {
		r.dotRing.push(duration)
	} else {
		r.dashRing.push(duration)
	}

	avgDot := r.dotRing.avg()
	avgDash := r.dashRing.avg()
	if avgDot == 0 || avgDash == 0 {
		return
	}

	threshold := (avgDash + avgDot) / 2
	if threshold <= 0 {
		return
	}
	speed := float64(cw.DotCalibration) * 2 / float64(threshold)
	if speed < cw.SpeedMin {
		speed = cw.SpeedMin
	} else if speed > cw.SpeedMax {
		speed = cw.SpeedMax
	}
	r.speedWpm = speed
	r.dirty = true
	r.derive()
}

// appendMarkLocked appends a classified mark to the representation
// buffer, or transitions to EocGapErr on overflow, per spec §4.6
// ("Representation buffer overflow... transition to EocGapErr and fail
// with BufferFull without storing the mark"). tv timestamps the error
// so a later PollRepresentation can measure how long the receiver has
// sat in EocGapErr and escalate to the terminal EowGapErr once a
// word-length gap has elapsed without a Clear().
func (r *Receiver) appendMarkLocked(mark cw.Mark, tv clock.Timeval) error {
	if len(r.representation) >= cw.ReceiveBufferCapacity {
		r.state = EocGapErr
		r.markEndTs = tv
		r.pendingErr = cw.ErrBufferFull
		return cw.ErrBufferFull
	}
	if mark == cw.MarkDot {
		r.representation = append(r.representation, '.')
	} else {
		r.representation = append(r.representation, '-')
	}
	return nil
}

// BufferDot appends a dot directly to the representation buffer,
// bypassing mark_begin/mark_end timing and classification — the
// higher-level convenience named in spec §4.6.
func (r *Receiver) BufferDot(ts *clock.Timeval) error {
	return r.bufferMark(ts, cw.MarkDot)
}

// BufferDash appends a dash directly, the BufferDot counterpart.
func (r *Receiver) BufferDash(ts *clock.Timeval) error {
	return r.bufferMark(ts, cw.MarkDash)
}

func (r *Receiver) bufferMark(ts *clock.Timeval, mark cw.Mark) error {
	tv, err := clock.ValidateTimestamp(ts)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.derive()

	if err := r.appendMarkLocked(mark, tv); err != nil {
		return err
	}
	r.markEndTs = tv
	r.state = Space
	return nil
}

// PollRepresentation returns the accumulated representation once the
// current inter-character or inter-word gap can be classified, per spec
// §4.6. Returns cw.ErrEarlyPoll if the gap is not yet long enough to
// tell.
func (r *Receiver) PollRepresentation(ts *clock.Timeval) (string, bool, error) {
	tv, err := clock.ValidateTimestamp(ts)
	if err != nil {
		return "", false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.derive()

	switch r.state {
	case Idle, Mark:
		return "", false, cw.ErrEarlyPoll

	case Space, EocGap:
		gap := clock.DiffMicros(r.markEndTs, tv)
		switch {
		case gap > r.eocMax:
			if r.state == Space {
				r.recordStat(cw.StatInterCharacterSpace, gap-(3*r.dotIdeal))
			}
			r.state = EowGap
			return string(r.representation), true, nil
		case gap >= r.eocMin:
			if r.state == Space {
				r.recordStat(cw.StatInterCharacterSpace, gap-(3*r.dotIdeal))
			}
			r.state = EocGap
			return string(r.representation), false, nil
		default:
			return "", false, cw.ErrEarlyPoll
		}

	case EowGap:
		return string(r.representation), true, nil

	case EocGapErr:
		// EocGapErr is not itself terminal: once a word-length gap has
		// elapsed since the error with no intervening Clear(), it
		// escalates to the terminal EowGapErr, mirroring how an ordinary
		// Space/EocGap escalates into EowGap.
		gap := clock.DiffMicros(r.markEndTs, tv)
		if gap > r.eocMax {
			r.state = EowGapErr
		}
		return "", false, r.pendingErr

	default: // EowGapErr
		return "", false, r.pendingErr
	}
}

// PollCharacter polls the representation and additionally looks it up in
// the character table, per spec §4.6.
func (r *Receiver) PollCharacter(ts *clock.Timeval) (rune, bool, error) {
	rep, eow, err := r.PollRepresentation(ts)
	if err != nil {
		return 0, false, err
	}
	ch, ok := tables.RepresentationToChar(rep)
	if !ok {
		return 0, eow, fmt.Errorf("%w: representation %q", cw.ErrNoSuchCharacter, rep)
	}
	return ch, eow, nil
}
