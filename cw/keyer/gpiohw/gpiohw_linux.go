//go:build linux

// Package gpiohw drives a keyer.Keyer or keyer.StraightKey from GPIO
// paddle/key lines via libgpiod's character device interface, one of
// the backends spec §4.7/§4.8 anticipates for a real transceiver.
//
// direwolf's own GPIO usage (src/ptt.go's OCTYPE_PTT sysfs/libgpiod
// path) is output-only: it drives a line, never watches one. This
// package is the input-side counterpart, grounded on the same
// "resolve a chip+line pair once at open time, fail loudly if the
// kernel won't give it to us" discipline.
package gpiohw

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/n5cw/gocw/cw/keyer"
)

// Paddles watches two GPIO lines — dot and dash — and reports their
// active-low pressed state to a keyer.Keyer via NotifyPaddleEvent.
type Paddles struct {
	mu sync.Mutex

	chip string
	dot  *gpiocdev.Line
	dash *gpiocdev.Line

	k *keyer.Keyer

	dotOffset, dashOffset int
}

// Option configures a new Paddles source.
type Option func(*paddleConfig)

type paddleConfig struct {
	chip                  string
	dotOffset, dashOffset int
}

// WithChip overrides the default gpiochip device name ("gpiochip0").
func WithChip(chip string) Option {
	return func(c *paddleConfig) { c.chip = chip }
}

// OpenPaddles requests the dot and dash lines (active-low, pressed =
// line reads low) on chip, wiring edge events straight into k via
// NotifyPaddleEvent.
func OpenPaddles(k *keyer.Keyer, dotOffset, dashOffset int, opts ...Option) (*Paddles, error) {
	cfg := paddleConfig{chip: "gpiochip0", dotOffset: dotOffset, dashOffset: dashOffset}
	for _, o := range opts {
		o(&cfg)
	}

	p := &Paddles{chip: cfg.chip, k: k, dotOffset: dotOffset, dashOffset: dashOffset}

	dot, err := gpiocdev.RequestLine(cfg.chip, dotOffset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(p.onDotEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("gpiohw: request dot line %s:%d: %w", cfg.chip, dotOffset, err)
	}
	p.dot = dot

	dash, err := gpiocdev.RequestLine(cfg.chip, dashOffset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(p.onDashEvent),
	)
	if err != nil {
		_ = dot.Close()
		return nil, fmt.Errorf("gpiohw: request dash line %s:%d: %w", cfg.chip, dashOffset, err)
	}
	p.dash = dash

	return p, nil
}

func (p *Paddles) onDotEvent(evt gpiocdev.LineEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dotPressed := evt.Type == gpiocdev.LineEventFallingEdge
	dashPressed := p.currentDashLocked()
	p.k.NotifyPaddleEvent(dotPressed, dashPressed)
}

func (p *Paddles) onDashEvent(evt gpiocdev.LineEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dashPressed := evt.Type == gpiocdev.LineEventFallingEdge
	dotPressed := p.currentDotLocked()
	p.k.NotifyPaddleEvent(dotPressed, dashPressed)
}

// currentDotLocked and currentDashLocked read back the other line's
// level directly, since the two lines are watched independently and a
// squeeze needs both states at once. Must be called with p.mu held.
func (p *Paddles) currentDotLocked() bool {
	v, err := p.dot.Value()
	if err != nil {
		return false
	}
	return v == 0 // active-low: pressed reads 0
}

func (p *Paddles) currentDashLocked() bool {
	v, err := p.dash.Value()
	if err != nil {
		return false
	}
	return v == 0
}

// Close releases both GPIO lines.
func (p *Paddles) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	dotErr := p.dot.Close()
	dashErr := p.dash.Close()
	if dotErr != nil {
		return dotErr
	}
	return dashErr
}

// StraightKeyLine watches a single GPIO line and reports its
// active-low closed state to a keyer.StraightKey.
type StraightKeyLine struct {
	mu   sync.Mutex
	line *gpiocdev.Line
	sk   *keyer.StraightKey
}

// OpenStraightKeyLine requests line offset on chip (active-low, closed
// = line reads low), wiring edge events into sk via NotifyEvent.
func OpenStraightKeyLine(sk *keyer.StraightKey, chip string, offset int) (*StraightKeyLine, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	s := &StraightKeyLine{sk: sk}

	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.onEvent),
	)
	if err != nil {
		return nil, fmt.Errorf("gpiohw: request key line %s:%d: %w", chip, offset, err)
	}
	s.line = line
	return s, nil
}

func (s *StraightKeyLine) onEvent(evt gpiocdev.LineEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := evt.Type == gpiocdev.LineEventFallingEdge
	_ = s.sk.NotifyEvent(closed)
}

// Close releases the GPIO line.
func (s *StraightKeyLine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line.Close()
}
