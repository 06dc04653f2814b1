//go:build windows

package usb

const (
	defaultMuxNetwork = "tcp"
	defaultMuxAddress = "127.0.0.1:27015"
)
