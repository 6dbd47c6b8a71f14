// Package clock provides the timestamp validation, monotonic
// differencing, and interruptible sleep primitives the receiver and
// generator build their timing on.
//
// Grounded on the discipline direwolf applies around its own timestamps
// (validated struct timeval fields) and its xmit_thread's tolerance for
// spurious wakeups during a timed wait; re-expressed here with Go's
// time.Time and a stop channel instead of signal-restartable nanosleep.
// Timeval readings are taken from the wall clock (Unix seconds and
// microseconds); Go's monotonic clock reading is not carried into them.
package clock

import (
	"fmt"
	"math"
	"time"

	"github.com/n5cw/gocw/cw"
)

// Timeval mirrors the C timeval the original engine timestamps events
// with: seconds plus microseconds. Receiver and generator callers that
// already have a monotonic reading in this shape can pass it directly
// instead of letting ValidateTimestamp read the clock itself.
type Timeval struct {
	Sec  int64
	Usec int32
}

// Now returns the current wall-clock time as a Timeval. The value is not
// monotonic: a step of the host clock shows up in it.
func Now() Timeval {
	return fromTime(time.Now())
}

func fromTime(t time.Time) Timeval {
	return Timeval{Sec: t.Unix(), Usec: int32(t.Nanosecond() / 1000)}
}

// FromTime converts an arbitrary time.Time (not necessarily time.Now())
// into a Timeval, for callers that already hold a cooperative-clock
// reading (e.g. the keyer's Poll(now)) and need to hand it to a
// timestamp-based API like the receiver's MarkBegin/MarkEnd.
func FromTime(t time.Time) Timeval {
	return fromTime(t)
}

// ValidateTimestamp validates an explicit timestamp, or returns Now()
// (the wall clock) when in is nil. Per spec §4.2: tv_sec must be
// non-negative and 0 <= tv_usec < 1_000_000.
func ValidateTimestamp(in *Timeval) (Timeval, error) {
	if in == nil {
		return Now(), nil
	}
	if in.Sec < 0 || in.Usec < 0 || in.Usec >= 1_000_000 {
		return Timeval{}, fmt.Errorf("%w: sec=%d usec=%d", cw.ErrInvalidTimestamp, in.Sec, in.Usec)
	}
	return *in, nil
}

// DiffMicros returns later-earlier in microseconds, saturated to
// math.MaxInt32 on overflow. A 20,000,000us Farnsworth word gap comfortably
// fits in int32, so the saturation bound is generous for any value this
// engine will ever compute; it exists purely as a guard against a caller
// passing wildly inconsistent timestamps.
func DiffMicros(earlier, later Timeval) int32 {
	secDiff := later.Sec - earlier.Sec
	usecDiff := int64(later.Usec) - int64(earlier.Usec)
	total := secDiff*1_000_000 + usecDiff
	if total > math.MaxInt32 {
		return math.MaxInt32
	}
	if total < math.MinInt32 {
		return math.MinInt32
	}
	return int32(total)
}

// MicrosToTimeval converts a microsecond count into a {sec, usec} pair,
// matching the layout receive windows and generator durations are
// expressed in.
func MicrosToTimeval(us int64) (sec int64, usec int32) {
	sec = us / 1_000_000
	usec = int32(us % 1_000_000)
	if usec < 0 {
		usec += 1_000_000
		sec--
	}
	return sec, usec
}

// SleepUntil blocks until deadline, waking early only if stop is closed.
// Go's time.Sleep/Timer already resumes correctly across spurious
// runtime wakeups (there is no Go-level signal-interruption of timers),
// so the interruptible part of the original's sleep_until is expressed
// here as the stop channel: a caller that wants to cancel a long sleep
// (e.g. a generator shutting down mid tone) closes stop and SleepUntil
// returns immediately with false. Returns true if the deadline was
// reached, false if stop fired first.
func SleepUntil(deadline time.Time, stop <-chan struct{}) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
