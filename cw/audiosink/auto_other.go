//go:build !linux

package audiosink

// defaultDeviceLister has nothing to enumerate off Linux; Auto falls
// through to PortAudio's own default-device negotiation.
func defaultDeviceLister() []string {
	return nil
}
