package keyer

import (
	"sync"
	"time"

	"github.com/n5cw/gocw/cw/clock"
)

// StraightKeySender is the generator capability a straight key needs:
// a continuous tone while the key is down, and a way to silence it the
// instant the key comes up. Satisfied by *generator.Generator.
type StraightKeySender interface {
	PlayForever() error
	StopForever() error
}

// StraightKey mirrors a manual telegraph key's closed/open state into
// generator tone events, per spec §4.8: key-down starts a continuous
// ("forever") tone, key-up flushes it. Unlike Keyer it has no timing
// state of its own — NotifyEvent is the only driver.
type StraightKey struct {
	mu sync.Mutex

	sender     StraightKeySender
	notifiable Notifiable
	closed     bool

	keyingCallback KeyingCallback
}

// NewStraightKey constructs a StraightKey driving sender.
func NewStraightKey(sender StraightKeySender, opts ...StraightKeyOption) *StraightKey {
	k := &StraightKey{sender: sender}
	for _, o := range opts {
		o(k)
	}
	return k
}

// StraightKeyOption configures a new StraightKey.
type StraightKeyOption func(*StraightKey)

// WithStraightKeyCallback registers the PTT-edge callback.
func WithStraightKeyCallback(cb KeyingCallback) StraightKeyOption {
	return func(k *StraightKey) { k.keyingCallback = cb }
}

// WithStraightKeyNotifiable attaches a receiver (or anything satisfying
// Notifiable) to be notified of this key's key-down/key-up edges, per
// spec §3.
func WithStraightKeyNotifiable(n Notifiable) StraightKeyOption {
	return func(k *StraightKey) { k.notifiable = n }
}

// Closed reports whether the key is currently down.
func (k *StraightKey) Closed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

// NotifyEvent reports the key's physical state. A no-op if the state
// hasn't changed, per spec §4.8; otherwise it starts or stops the
// continuous tone and fires the keying callback on the edge.
func (k *StraightKey) NotifyEvent(closed bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if closed == k.closed {
		return nil
	}
	k.closed = closed

	if k.keyingCallback != nil {
		if closed {
			k.keyingCallback(1)
		} else {
			k.keyingCallback(0)
		}
	}

	if k.notifiable != nil {
		tv := clock.FromTime(time.Now())
		if closed {
			_ = k.notifiable.MarkBegin(&tv)
		} else {
			_ = k.notifiable.MarkEnd(&tv)
		}
	}

	if closed {
		return k.sender.PlayForever()
	}
	return k.sender.StopForever()
}
