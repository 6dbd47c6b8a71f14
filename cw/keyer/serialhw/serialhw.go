// Package serialhw drives a keyer.StraightKey from a serial port, one
// of the hardware backends spec §4.8 anticipates, grounded directly on
// the teacher's src/serial_port.go: term.Open with term.RawMode, an
// optional fixed baud via SetSpeed, and a blocking one-byte-at-a-time
// read loop.
//
// The wire protocol is a single byte per key transition: non-zero
// means key-down, zero means key-up. This keeps the same "hide the OS
// serial differences behind pkg/term" shape as the teacher without
// depending on any particular USB-to-serial adapter's modem-control
// lines, which pkg/term doesn't expose portably.
package serialhw

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/term"

	"github.com/n5cw/gocw/cw/keyer"
)

// StraightKeyPort reads key-state bytes from a serial port and mirrors
// them into a keyer.StraightKey.
type StraightKeyPort struct {
	fd *term.Term
	sk *keyer.StraightKey

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// OpenStraightKeyPort opens device at baud (0 leaves the port's
// current speed alone, matching serial_port_open's convention) and
// starts a goroutine feeding byte-per-transition key events into sk.
func OpenStraightKeyPort(sk *keyer.StraightKey, device string, baud int) (*StraightKeyPort, error) {
	fd, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serialhw: open %s: %w", device, err)
	}

	switch baud {
	case 0:
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := fd.SetSpeed(baud); err != nil {
			_ = fd.Close()
			return nil, fmt.Errorf("serialhw: set speed %d on %s: %w", baud, device, err)
		}
	default:
		if err := fd.SetSpeed(4800); err != nil {
			_ = fd.Close()
			return nil, fmt.Errorf("serialhw: set fallback speed on %s: %w", device, err)
		}
	}

	p := &StraightKeyPort{fd: fd, sk: sk}
	p.wg.Add(1)
	go p.readLoop()
	return p, nil
}

func (p *StraightKeyPort) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 1)
	for {
		n, err := p.fd.Read(buf)
		if err != nil || n != 1 {
			p.mu.Lock()
			closing := p.closing
			p.mu.Unlock()
			if closing {
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		_ = p.sk.NotifyEvent(buf[0] != 0)
	}
}

// Close stops the read loop and closes the serial port.
func (p *StraightKeyPort) Close() error {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()
	err := p.fd.Close()
	p.wg.Wait()
	return err
}
