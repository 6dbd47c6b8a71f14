// Command cwsend sends text as Morse code through the generator,
// picking an audio sink the way the library's config and flags choose
// it — the flag/config layering this binary uses mirrors
// cmd/direwolf/main.go's pflag.*P pattern plus a YAML side-config file
// for settings that aren't worth a flag of their own.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/n5cw/gocw/cw/audiosink"
	"github.com/n5cw/gocw/cw/generator"
)

// fileConfig holds settings a user would rather keep in a config file
// than retype as flags every run, the way direwolf keeps the bulk of
// its settings in direwolf.conf and reserves flags for overrides.
type fileConfig struct {
	FrequencyHz      int32  `yaml:"frequency_hz"`
	VolumePercent    int    `yaml:"volume_percent"`
	WeightingPercent int    `yaml:"weighting_percent"`
	GapUnits         int    `yaml:"gap_units"`
	Sink             string `yaml:"sink"`
	Device           string `yaml:"device"`
	TimestampFormat  string `yaml:"timestamp_format"`
}

// logTimestamp formats now per layout, the same strftime pattern the
// teacher's xmit.go/tq.go use for save_audio_config_p.timestamp_format,
// and returns "" when layout is empty so callers can skip the prefix
// entirely rather than print a blank one.
func logTimestamp(layout string, now time.Time) string {
	if layout == "" {
		return ""
	}
	formatted, err := strftime.Format(layout, now)
	if err != nil {
		return ""
	}
	return formatted
}

func loadFileConfig(path string) (fileConfig, error) {
	cfg := fileConfig{FrequencyHz: 800, VolumePercent: 100, WeightingPercent: 50, Sink: "auto"}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cwsend: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cwsend: parse config %s: %w", path, err)
	}
	return cfg, nil
}

func sinkKindFromName(name string) audiosink.Kind {
	switch name {
	case "null":
		return audiosink.KindNull
	case "console":
		return audiosink.KindConsole
	case "alsa", "oss", "pulse", "portaudio":
		return audiosink.KindALSA
	default:
		return audiosink.KindAuto
	}
}

func main() {
	var configFile = pflag.StringP("config-file", "c", "", "YAML configuration file for sink/tone defaults.")
	var speedWpm = pflag.IntP("speed", "s", 18, "Sending speed in words per minute.")
	var verbose = pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "cwsend - send text as Morse code.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cwsend [options] [text...]\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nWith no text arguments, reads lines from stdin until EOF.\n")
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

	cfg, err := loadFileConfig(*configFile)
	if err != nil {
		logger.Fatal(err)
	}

	sink, err := audiosink.New(audiosink.Spec{Kind: sinkKindFromName(cfg.Sink), Device: cfg.Device})
	if err != nil {
		logger.Fatal("open sink", "err", err)
	}

	gen, err := generator.New(sink,
		generator.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("start generator", "err", err)
	}
	defer gen.Stop()

	if err := gen.SetSpeed(*speedWpm); err != nil {
		logger.Fatal("set speed", "err", err)
	}
	if err := gen.SetFrequency(cfg.FrequencyHz); err != nil {
		logger.Fatal("set frequency", "err", err)
	}
	if err := gen.SetVolume(cfg.VolumePercent); err != nil {
		logger.Fatal("set volume", "err", err)
	}
	if err := gen.SetWeighting(cfg.WeightingPercent); err != nil {
		logger.Fatal("set weighting", "err", err)
	}
	if err := gen.SetGap(cfg.GapUnits); err != nil {
		logger.Fatal("set gap", "err", err)
	}

	sendLine := func(text string) {
		if ts := logTimestamp(cfg.TimestampFormat, time.Now()); ts != "" {
			logger.Info(ts, "text", text)
		}
		if err := gen.PlayString(text); err != nil {
			logger.Error("send", "text", text, "err", err)
		}
		_ = gen.PlayEOWSpace()
	}

	args := pflag.Args()
	if len(args) > 0 {
		for _, text := range args {
			sendLine(text)
		}
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			sendLine(scanner.Text())
		}
	}

	_ = gen.Queue().WaitForToneQueue()
}
