//go:build linux

package audiosink

import "golang.org/x/sys/unix"

// kiocsound is Linux's console buzzer ioctl number (linux/kd.h KIOCSOUND).
const kiocsound = 0x4B2F

func defaultConsoleIoctl(fd uintptr, arg int) error {
	return unix.IoctlSetInt(int(fd), kiocsound, arg)
}
