//go:build linux

package audiosink

import "github.com/jochenvg/go-udev"

// defaultDeviceLister enumerates the "sound" subsystem through go-udev the
// way direwolf's audio.go comments describe scanning ALSA card nodes, and
// returns candidate device names ordered as udev reports them. The first
// entry becomes Auto's candidate device; PortAudio does not use that name
// and opens the host's default output device.
func defaultDeviceLister() []string {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("sound"); err != nil {
		return nil
	}
	devices, err := e.Devices()
	if err != nil {
		return nil
	}

	var names []string
	for _, d := range devices {
		node := d.Devnode()
		if node == "" {
			continue
		}
		names = append(names, node)
	}
	return names
}
