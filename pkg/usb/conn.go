//go:build !windows

package usb

const (
	defaultMuxNetwork = "unix"
	defaultMuxAddress = "/var/run/usbmuxd"
)
