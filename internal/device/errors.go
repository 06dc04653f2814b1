package device

import "errors"

var (
	// ErrTransportUnavailable is returned when usbmuxd can not be reached at all.
	ErrTransportUnavailable = errors.New("failed to connect to usbmuxd")
	// ErrDeviceNotFound is returned when a device is no longer attached.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrProtocol wraps failures of a device side service (lockdown, installation proxy, AFC).
	ErrProtocol = errors.New("device protocol error")
	// ErrNoDeviceSelected is returned by workflows run without a selected device.
	ErrNoDeviceSelected = errors.New("no device selected")
)
