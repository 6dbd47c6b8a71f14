package audiosink

import (
	"fmt"
	"os"
	"time"
)

// consoleTickRate is the PC speaker's fixed oscillator rate; the ioctl
// argument for a given tone frequency is consoleTickRate / frequencyHz,
// per spec §4.4 and §6 ("KIOCSOUND-equivalent ioctl with argument =
// 1193180 / frequency_hz").
const consoleTickRate = 1193180

// consoleNominalSampleRate is reported from Open purely so callers that
// ask "what sample rate did the sink pick" get a sensible answer; no PCM
// is ever produced (spec: "Sample-rate field is nominal").
const consoleNominalSampleRate = 8000

// Console drives the PC speaker ("buzzer") via /dev/console (or a
// caller-supplied device), the way direwolf's build would on a bare
// Linux console before ALSA/OSS existed. Volume is only expressible as
// on/off: any nonzero volume_percent from the generator is audible,
// volume 0 elsewhere means silent in the normal way (frequency 0).
type Console struct {
	device string
	file   *os.File
	ioctl  func(fd uintptr, arg int) error
	sleep  func(time.Duration)
}

// NewConsole constructs a Console sink. An empty device defaults to
// /dev/console.
func NewConsole(device string) *Console {
	if device == "" {
		device = "/dev/console"
	}
	return &Console{device: device, ioctl: defaultConsoleIoctl, sleep: time.Sleep}
}

func (c *Console) Probe(device string) bool {
	d := device
	if d == "" {
		d = c.device
	}
	f, err := os.OpenFile(d, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (c *Console) Open() (int, int, error) {
	f, err := os.OpenFile(c.device, os.O_WRONLY, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("audiosink: open console %s: %w", c.device, err)
	}
	c.file = f
	return consoleNominalSampleRate, nullPeriodFrames, nil
}

func (c *Console) Close() error {
	if c.file == nil {
		return nil
	}
	_ = c.sound(0)
	err := c.file.Close()
	c.file = nil
	return err
}

// Write exists to satisfy Sink, but the generator should prefer WriteTone
// (Console implements ToneWriter) since no PCM is ever produced here.
// When called directly, silence is written for the chunk's nominal
// duration so the timing contract still holds.
func (c *Console) Write(samples []int16) error {
	d := time.Duration(len(samples)) * time.Second / time.Duration(consoleNominalSampleRate)
	c.sleep(d)
	return nil
}

func (c *Console) Silence() error {
	return c.sound(0)
}

// WriteTone implements audiosink.ToneWriter.
func (c *Console) WriteTone(frequencyHz int32, durationUs int32) error {
	if err := c.sound(frequencyHz); err != nil {
		return err
	}
	c.sleep(time.Duration(durationUs) * time.Microsecond)
	return nil
}

func (c *Console) sound(frequencyHz int32) error {
	arg := 0
	if frequencyHz > 0 {
		arg = consoleTickRate / int(frequencyHz)
	}
	if c.file == nil {
		return nil
	}
	return c.ioctl(c.file.Fd(), arg)
}
