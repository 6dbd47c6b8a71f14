//go:build !linux

package gpiohw

import (
	"fmt"

	"github.com/n5cw/gocw/cw/keyer"
)

// Paddles is a no-op placeholder off Linux; libgpiod's character
// device interface this package wraps is Linux-only.
type Paddles struct{}

// Option configures a new Paddles source. No options are meaningful
// off Linux.
type Option func(*struct{})

// OpenPaddles always fails off Linux.
func OpenPaddles(_ *keyer.Keyer, _, _ int, _ ...Option) (*Paddles, error) {
	return nil, fmt.Errorf("gpiohw: GPIO paddles are only supported on linux")
}

// Close is a no-op.
func (p *Paddles) Close() error { return nil }

// StraightKeyLine is a no-op placeholder off Linux.
type StraightKeyLine struct{}

// OpenStraightKeyLine always fails off Linux.
func OpenStraightKeyLine(_ *keyer.StraightKey, _ string, _ int) (*StraightKeyLine, error) {
	return nil, fmt.Errorf("gpiohw: GPIO key line is only supported on linux")
}

// Close is a no-op.
func (s *StraightKeyLine) Close() error { return nil }
