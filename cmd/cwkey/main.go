// Command cwkey drives the generator from a physical key or paddle
// set, picking a hardware backend (GPIO paddles, a GPIO straight-key
// line, or a serial straight key) the way cmd/direwolf/main.go picks a
// PTT method from flags — one flag selects the backend, backend-
// specific flags configure it.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/n5cw/gocw/cw"
	"github.com/n5cw/gocw/cw/audiosink"
	"github.com/n5cw/gocw/cw/generator"
	"github.com/n5cw/gocw/cw/keyer"
	"github.com/n5cw/gocw/cw/keyer/gpiohw"
	"github.com/n5cw/gocw/cw/keyer/serialhw"
	"github.com/n5cw/gocw/cw/receiver"
)

// decoderPoller periodically drains a receiver.Receiver's representation
// buffer and logs the decoded character, the way pollKeyer drives the
// iambic state machine — nothing else calls PollCharacter on the
// receiver's behalf once a key or keyer is feeding it mark/space edges.
type decoderPoller struct {
	stop chan struct{}
	done chan struct{}
}

func pollDecoder(r *receiver.Receiver, logger *log.Logger) *decoderPoller {
	p := &decoderPoller{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				ch, eow, err := r.PollCharacter(nil)
				switch {
				case err == nil:
					logger.Info("decoded", "char", string(ch), "eow", eow)
					r.Clear()
				case errors.Is(err, cw.ErrNoSuchCharacter):
					logger.Warn("undecodable representation", "err", err)
					r.Clear()
				case errors.Is(err, cw.ErrEarlyPoll):
					// Gap not yet long enough to classify; keep waiting.
				default:
					logger.Warn("receiver poll error", "err", err)
				}
			}
		}
	}()
	return p
}

func (p *decoderPoller) Close() error {
	close(p.stop)
	<-p.done
	return nil
}

// keyerPoller drives a keyer.Keyer's cooperative state machine with a
// ticker, since nothing else in the iambic path calls Poll on its
// behalf the way tonequeue's worker goroutine drives tone playback.
type keyerPoller struct {
	backend closer
	stop    chan struct{}
	done    chan struct{}
}

func pollKeyer(k *keyer.Keyer, backend closer) *keyerPoller {
	p := &keyerPoller{backend: backend, stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case now := <-ticker.C:
				k.Poll(now)
			}
		}
	}()
	return p
}

func (p *keyerPoller) Close() error {
	close(p.stop)
	<-p.done
	return p.backend.Close()
}

func main() {
	var mode = pflag.StringP("mode", "m", "iambic", "Key mode: iambic, straight-gpio, or straight-serial.")
	var speedWpm = pflag.IntP("speed", "s", 18, "Sending speed in words per minute.")
	var frequencyHz = pflag.Int32P("frequency", "f", 800, "Tone frequency in Hz.")
	var curtisB = pflag.BoolP("curtis-b", "b", false, "Enable Curtis mode B iambic keying.")
	var chip = pflag.String("gpio-chip", "gpiochip0", "GPIO chip device for paddle/key-line modes.")
	var dotOffset = pflag.Int("dot-line", 17, "GPIO line offset for the dot paddle.")
	var dashOffset = pflag.Int("dash-line", 27, "GPIO line offset for the dash paddle.")
	var keyOffset = pflag.Int("key-line", 17, "GPIO line offset for a straight key.")
	var serialDevice = pflag.String("serial-device", "/dev/ttyUSB0", "Serial device for straight-serial mode.")
	var serialBaud = pflag.Int("serial-baud", 0, "Serial baud rate (0 leaves the port's current speed).")
	var verbose = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "cwkey - drive the generator from a physical key.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cwkey [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	sink, err := audiosink.New(audiosink.Spec{Kind: audiosink.KindAuto})
	if err != nil {
		logger.Fatal("open sink", "err", err)
	}

	gen, err := generator.New(sink, generator.WithLogger(logger))
	if err != nil {
		logger.Fatal("start generator", "err", err)
	}
	defer gen.Stop()

	if err := gen.SetSpeed(*speedWpm); err != nil {
		logger.Fatal("set speed", "err", err)
	}
	if err := gen.SetFrequency(*frequencyHz); err != nil {
		logger.Fatal("set frequency", "err", err)
	}

	rx := receiver.New(receiver.WithSpeed(float64(*speedWpm)))

	backend, err := attachBackend(*mode, gen, rx, logger, backendConfig{
		curtisB:      *curtisB,
		chip:         *chip,
		dotOffset:    *dotOffset,
		dashOffset:   *dashOffset,
		keyOffset:    *keyOffset,
		serialDevice: *serialDevice,
		serialBaud:   *serialBaud,
	})
	if err != nil {
		logger.Fatal("attach key backend", "mode", *mode, "err", err)
	}
	defer backend.Close()

	decoder := pollDecoder(rx, logger)
	defer decoder.Close()

	logger.Info("cwkey running", "mode", *mode, "speed", *speedWpm)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

type backendConfig struct {
	curtisB      bool
	chip         string
	dotOffset    int
	dashOffset   int
	keyOffset    int
	serialDevice string
	serialBaud   int
}

type closer interface {
	Close() error
}

func attachBackend(mode string, gen *generator.Generator, rx *receiver.Receiver, logger *log.Logger, cfg backendConfig) (closer, error) {
	switch mode {
	case "iambic":
		k := keyer.New(gen, keyer.WithCurtisB(cfg.curtisB), keyer.WithNotifiable(rx))
		paddles, err := gpiohw.OpenPaddles(k, cfg.dotOffset, cfg.dashOffset, gpiohw.WithChip(cfg.chip))
		if err != nil {
			return nil, err
		}
		return pollKeyer(k, paddles), nil
	case "straight-gpio":
		sk := keyer.NewStraightKey(gen, keyer.WithStraightKeyNotifiable(rx))
		return gpiohw.OpenStraightKeyLine(sk, cfg.chip, cfg.keyOffset)
	case "straight-serial":
		sk := keyer.NewStraightKey(gen, keyer.WithStraightKeyNotifiable(rx))
		return serialhw.OpenStraightKeyPort(sk, cfg.serialDevice, cfg.serialBaud)
	default:
		return nil, fmt.Errorf("cwkey: unknown mode %q (want iambic, straight-gpio, or straight-serial)", mode)
	}
}
